package gservice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/draft"
	"github.com/hal9000y/mail-assistant/internal/format"
)

const gmailUserID = "me"

// GmailGateway talks to the Gmail API directly. The issuer must hand out
// Google access tokens with the gmail.compose scope for this mode.
type GmailGateway struct {
	endpoint string
	log      zerolog.Logger
}

// NewGmailGateway creates a GmailGateway. An empty endpoint uses Google's default.
func NewGmailGateway(endpoint string, log zerolog.Logger) *GmailGateway {
	return &GmailGateway{endpoint: endpoint, log: log}
}

func (g *GmailGateway) Execute(ctx context.Context, action Action, tok *oauth2.Token, d draft.Draft) error {
	svc, err := g.newSvc(ctx, tok)
	if err != nil {
		return apperr.GatewayCall(0, fmt.Errorf("newSvc failed: %w", err))
	}

	msg := &gmail.Message{
		Raw:      encodeMessage(d),
		ThreadId: d.ThreadID,
	}

	switch action {
	case ActionCreateDraft:
		created, err := svc.Users.Drafts.Create(gmailUserID, &gmail.Draft{Message: msg}).Context(ctx).Do()
		if err != nil {
			return gmailError(fmt.Errorf("drafts.Create failed: %w", err))
		}
		g.log.Info().Str("gmail_draft_id", created.Id).Msg("gmail draft created")
	case ActionSendEmail:
		sent, err := svc.Users.Messages.Send(gmailUserID, msg).Context(ctx).Do()
		if err != nil {
			return gmailError(fmt.Errorf("messages.Send failed: %w", err))
		}
		g.log.Info().Str("gmail_message_id", sent.Id).Msg("gmail message sent")
	default:
		return unsupported(action)
	}

	return nil
}

func (g *GmailGateway) newSvc(ctx context.Context, tok *oauth2.Token) (*gmail.Service, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))),
	}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	return svc, nil
}

func gmailError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if gErr.Code == http.StatusUnauthorized {
			return apperr.GatewayCall(gErr.Code, fmt.Errorf("%w: %w", apperr.ErrAuthExpired, err))
		}
		return apperr.GatewayCall(gErr.Code, err)
	}
	return apperr.GatewayCall(0, err)
}

// encodeMessage renders d as a base64url RFC 5322 message.
func encodeMessage(d draft.Draft) string {
	var b strings.Builder
	if d.To != "" {
		b.WriteString("To: " + d.To + "\r\n")
	}
	if d.Subject != "" {
		b.WriteString("Subject: " + mime.BEncoding.Encode("UTF-8", d.Subject) + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(format.PlainText(d.Body))

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}
