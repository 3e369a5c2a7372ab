package gservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/auth"
	"github.com/hal9000y/mail-assistant/internal/draft"
	"github.com/hal9000y/mail-assistant/internal/tool"
)

// DefaultActionsURL is the root of the hosted Gmail actions.
const DefaultActionsURL = "https://remote.mcp.pipedream.net/actions"

const gmailAppSlug = "gmail"

// ActionsGateway posts drafts to the hosted action endpoints.
type ActionsGateway struct {
	baseURL  string
	identity tool.Identity
	client   *http.Client
	log      zerolog.Logger
}

// NewActionsGateway creates an ActionsGateway rooted at baseURL.
func NewActionsGateway(baseURL string, identity tool.Identity, client *http.Client, log zerolog.Logger) *ActionsGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &ActionsGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identity,
		client:   client,
		log:      log,
	}
}

func (g *ActionsGateway) Execute(ctx context.Context, action Action, tok *oauth2.Token, d draft.Draft) error {
	switch action {
	case ActionCreateDraft, ActionSendEmail:
	default:
		return unsupported(action)
	}

	payload, err := json.Marshal(newActionRequest(d))
	if err != nil {
		return apperr.GatewayCall(0, fmt.Errorf("json.Marshal failed: %w", err))
	}

	url := g.baseURL + "/" + gmailAppSlug + "/" + string(action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return apperr.GatewayCall(0, fmt.Errorf("http.NewRequestWithContext failed: %w", err))
	}
	for k, v := range tool.Headers(g.identity, tok.AccessToken, gmailAppSlug) {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	tok.SetAuthHeader(req)

	g.log.Info().Str("action", string(action)).Msg("gmail action request started")

	resp, err := g.client.Do(req)
	if err != nil {
		return apperr.GatewayCall(0, fmt.Errorf("client.Do failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := auth.Redact(strings.TrimSpace(string(body)))
	if readErr != nil {
		detail = strings.TrimSpace(detail + " (io.ReadAll failed: " + readErr.Error() + ")")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperr.GatewayCall(resp.StatusCode, fmt.Errorf("%w: %s", apperr.ErrAuthExpired, detail))
	case resp.StatusCode >= http.StatusMultipleChoices:
		return apperr.GatewayCall(resp.StatusCode, errors.New(detail))
	case readErr != nil:
		// The status already reports success; failing here would invite a resend.
		g.log.Warn().Err(readErr).Str("action", string(action)).Msg("gmail action response body unreadable")
	}

	g.log.Info().Str("action", string(action)).Int("status", resp.StatusCode).Msg("gmail action request succeeded")

	return nil
}
