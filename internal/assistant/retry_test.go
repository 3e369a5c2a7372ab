package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
)

type rotatingCreds struct {
	issued      int
	invalidated int
	failAfter   int
}

func (c *rotatingCreds) Token(context.Context) (*oauth2.Token, error) {
	if c.failAfter > 0 && c.issued >= c.failAfter {
		return nil, errors.New("issuer down")
	}
	c.issued++
	return &oauth2.Token{AccessToken: string(rune('a' + c.issued - 1))}, nil
}

func (c *rotatingCreds) Invalidate() {
	c.invalidated++
}

func TestWithRefresh(t *testing.T) {
	ctx := context.Background()
	expired := apperr.ModelCall(401, apperr.ErrAuthExpired)

	t.Run("success needs no refresh", func(t *testing.T) {
		creds := &rotatingCreds{}
		res, retried, err := withRefresh(ctx, creds, zerolog.Nop(), func(_ context.Context, tok *oauth2.Token) (string, error) {
			return tok.AccessToken, nil
		})
		require.NoError(t, err)
		assert.False(t, retried)
		assert.Equal(t, "a", res)
		assert.Zero(t, creds.invalidated)
	})

	t.Run("expired credential retried once with a new token", func(t *testing.T) {
		creds := &rotatingCreds{}
		var seen []string
		res, retried, err := withRefresh(ctx, creds, zerolog.Nop(), func(_ context.Context, tok *oauth2.Token) (string, error) {
			seen = append(seen, tok.AccessToken)
			if tok.AccessToken == "a" {
				return "", expired
			}
			return "done", nil
		})
		require.NoError(t, err)
		assert.True(t, retried)
		assert.Equal(t, "done", res)
		assert.Equal(t, []string{"a", "b"}, seen)
		assert.Equal(t, 1, creds.invalidated)
	})

	t.Run("no second retry", func(t *testing.T) {
		creds := &rotatingCreds{}
		calls := 0
		_, retried, err := withRefresh(ctx, creds, zerolog.Nop(), func(context.Context, *oauth2.Token) (int, error) {
			calls++
			return 0, expired
		})
		require.ErrorIs(t, err, apperr.ErrAuthExpired)
		assert.True(t, retried)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		creds := &rotatingCreds{}
		boom := errors.New("boom")
		calls := 0
		_, retried, err := withRefresh(ctx, creds, zerolog.Nop(), func(context.Context, *oauth2.Token) (int, error) {
			calls++
			return 0, boom
		})
		require.ErrorIs(t, err, boom)
		assert.False(t, retried)
		assert.Equal(t, 1, calls)
		assert.Zero(t, creds.invalidated)
	})

	t.Run("refetch failure", func(t *testing.T) {
		creds := &rotatingCreds{failAfter: 1}
		calls := 0
		_, retried, err := withRefresh(ctx, creds, zerolog.Nop(), func(context.Context, *oauth2.Token) (int, error) {
			calls++
			return 0, expired
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "issuer down")
		assert.True(t, retried)
		assert.Equal(t, 1, calls)
	})

	t.Run("initial fetch failure", func(t *testing.T) {
		_, _, err := withRefresh(ctx, &failingCreds{}, zerolog.Nop(), func(context.Context, *oauth2.Token) (int, error) {
			t.Fatal("fn must not run without a credential")
			return 0, nil
		})
		require.Error(t, err)
	})
}

type failingCreds struct{}

func (failingCreds) Token(context.Context) (*oauth2.Token, error) { return nil, errors.New("no issuer") }
func (failingCreds) Invalidate()                                   {}
