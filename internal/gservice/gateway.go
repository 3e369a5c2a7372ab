// Package gservice executes confirmed email actions against a mail provider.
package gservice

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/draft"
	"github.com/hal9000y/mail-assistant/internal/format"
)

// Action is an irreversible operation a user confirms.
type Action string

const (
	ActionCreateDraft Action = "create_draft"
	ActionSendEmail   Action = "send_email"
)

// Gateway runs one action for a draft, authorized with tok. Bodies are sent
// as plain text. Rejections of tok are reported as apperr.ErrAuthExpired.
type Gateway interface {
	Execute(ctx context.Context, action Action, tok *oauth2.Token, d draft.Draft) error
}

type actionRequest struct {
	To       string `json:"to,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Body     string `json:"body"`
	ThreadID string `json:"threadId,omitempty"`
}

func newActionRequest(d draft.Draft) actionRequest {
	return actionRequest{To: d.To, Subject: d.Subject, Body: format.PlainText(d.Body), ThreadID: d.ThreadID}
}

func unsupported(action Action) error {
	return apperr.GatewayCall(0, fmt.Errorf("unsupported action %q", action))
}

var (
	unauthorizedRe = regexp.MustCompile(`(?i)unauthorized`)
	status401Re    = regexp.MustCompile(`\b401\b`)
	authWordRe     = regexp.MustCompile(`(?i)invalid|expired|token|auth`)
)

// authExpiredText reports whether a tool error text means the bearer token was
// refused. A bare 401 only counts next to an auth word, so ids and counts
// containing those digits do not trigger a refresh.
func authExpiredText(s string) bool {
	return unauthorizedRe.MatchString(s) || (status401Re.MatchString(s) && authWordRe.MatchString(s))
}
