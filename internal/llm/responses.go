// Package llm implements the completion backends the assistant talks to.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/tool"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config configures a completion backend.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = "gpt-4.1"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// ResponsesClient calls the Responses API, which runs the hosted MCP tools itself.
type ResponsesClient struct {
	client openai.Client
	model  string
}

// NewResponsesClient creates a ResponsesClient. Retries are left to the caller.
func NewResponsesClient(cfg Config) *ResponsesClient {
	cfg = cfg.withDefaults()

	return &ResponsesClient{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL+"/"),
			option.WithHTTPClient(cfg.HTTPClient),
			option.WithMaxRetries(0),
		),
		model: cfg.Model,
	}
}

// Complete sends input with tools and returns the reply text.
func (c *ResponsesClient) Complete(ctx context.Context, input string, tools []tool.Descriptor) (string, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, mcpTool(t))
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", apperr.ModelCall(apiErr.StatusCode, classify(apiErr.StatusCode, err))
		}
		return "", apperr.ModelCall(0, fmt.Errorf("responses.New failed: %w", err))
	}

	return resp.OutputText(), nil
}

func mcpTool(t tool.Descriptor) responses.ToolUnionParam {
	return responses.ToolUnionParam{
		OfMcp: &responses.ToolMcpParam{
			ServerLabel: t.ServerLabel,
			ServerURL:   t.ServerURL,
			Headers:     t.Headers,
			RequireApproval: responses.ToolMcpRequireApprovalUnionParam{
				OfMcpToolApprovalSetting: openai.String(t.RequireApproval),
			},
		},
	}
}

// classify maps a rejected call to ErrAuthExpired when the model or one of its
// MCP servers refused the bearer token.
func classify(status int, err error) error {
	if status == http.StatusUnauthorized || mentionsUnauthorized(err.Error()) {
		return fmt.Errorf("%w: %w", apperr.ErrAuthExpired, err)
	}
	return err
}

var (
	status401Re = regexp.MustCompile(`\b401\b`)
	authWordRe  = regexp.MustCompile(`(?i)invalid|unauthorized`)
)

func mentionsUnauthorized(msg string) bool {
	return status401Re.MatchString(msg) && authWordRe.MatchString(msg)
}
