package gservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/draft"
	"github.com/hal9000y/mail-assistant/internal/tool"
)

var mcpToolNames = map[Action]string{
	ActionCreateDraft: "gmail-create-draft",
	ActionSendEmail:   "gmail-send-email",
}

// TransportFunc opens an MCP transport authorized with tok.
type TransportFunc func(tok *oauth2.Token) mcp.Transport

// MCPGateway runs actions as tool calls on the remote MCP server.
type MCPGateway struct {
	transport TransportFunc
	log       zerolog.Logger
}

// NewMCPGateway creates an MCPGateway speaking streamable HTTP to serverURL.
func NewMCPGateway(serverURL string, identity tool.Identity, base http.RoundTripper, log zerolog.Logger) *MCPGateway {
	if base == nil {
		base = http.DefaultTransport
	}
	return NewMCPGatewayWithTransport(func(tok *oauth2.Token) mcp.Transport {
		headers := tool.Headers(identity, tok.AccessToken, gmailAppSlug)
		delete(headers, "Authorization")

		return &mcp.StreamableClientTransport{
			Endpoint: serverURL,
			HTTPClient: &http.Client{
				Transport: &oauth2.Transport{
					Source: oauth2.StaticTokenSource(tok),
					Base:   headerTransport{headers: headers, base: base},
				},
			},
		}
	}, log)
}

// NewMCPGatewayWithTransport creates an MCPGateway over custom transports.
func NewMCPGatewayWithTransport(transport TransportFunc, log zerolog.Logger) *MCPGateway {
	return &MCPGateway{transport: transport, log: log}
}

func (g *MCPGateway) Execute(ctx context.Context, action Action, tok *oauth2.Token, d draft.Draft) error {
	name, ok := mcpToolNames[action]
	if !ok {
		return unsupported(action)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "mail-assistant", Version: "v1.0.0"}, nil)

	session, err := client.Connect(ctx, g.transport(tok), nil)
	if err != nil {
		return mcpError(fmt.Errorf("client.Connect failed: %w", err))
	}
	defer func() { _ = session.Close() }()

	g.log.Info().Str("tool", name).Msg("mcp tool call started")

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: newActionRequest(d),
	})
	if err != nil {
		return mcpError(fmt.Errorf("session.CallTool failed: %w", err))
	}
	if result.IsError {
		return mcpError(errors.New(resultText(result)))
	}

	g.log.Info().Str("tool", name).Msg("mcp tool call succeeded")

	return nil
}

func mcpError(err error) error {
	if authExpiredText(err.Error()) {
		return apperr.GatewayCall(0, fmt.Errorf("%w: %w", apperr.ErrAuthExpired, err))
	}
	return apperr.GatewayCall(0, err)
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 {
		return "tool call failed"
	}
	return strings.Join(parts, "\n")
}

type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
