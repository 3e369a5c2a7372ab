package assistant

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
)

type credentials interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	Invalidate()
}

// withRefresh runs fn with the current credential. If fn reports an expired
// credential, the credential is invalidated, refetched and fn runs once more.
// retried tells whether the returned result or error comes from that second run.
func withRefresh[T any](
	ctx context.Context,
	creds credentials,
	log zerolog.Logger,
	fn func(context.Context, *oauth2.Token) (T, error),
) (res T, retried bool, err error) {
	tok, err := creds.Token(ctx)
	if err != nil {
		return res, false, fmt.Errorf("creds.Token failed: %w", err)
	}

	res, err = fn(ctx, tok)
	if err == nil || !apperr.IsAuthExpired(err) {
		return res, false, err
	}

	log.Warn().Err(err).Msg("credential rejected, refreshing and retrying once")
	creds.Invalidate()

	tok, err = creds.Token(ctx)
	if err != nil {
		return res, true, fmt.Errorf("creds.Token after refresh failed: %w", err)
	}

	res, err = fn(ctx, tok)
	return res, true, err
}
