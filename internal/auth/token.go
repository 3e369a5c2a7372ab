// Package auth caches the connect token used to authorize tool and gateway calls.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/hal9000y/mail-assistant/internal/apperr"
)

// DefaultTokenLifetime applies when the issuer omits expires_in.
const DefaultTokenLifetime = 1800 * time.Second

const flightKey = "connect-token"

// CredentialFetchError reports an unreachable issuer or a malformed issuer payload.
type CredentialFetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *CredentialFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("connect token fetch from %s failed (status %d): %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("connect token fetch from %s failed: %v", e.URL, e.Err)
}

func (e *CredentialFetchError) Unwrap() error {
	return e.Err
}

type issuerResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Cache holds the single process-wide connect token.
//
// The whole check-fetch-store sequence runs under mu, and concurrent callers
// share one in-flight issuer request, so an expired token is refetched once.
type Cache struct {
	mu     sync.Mutex
	token  *oauth2.Token
	flight singleflight.Group

	issuerURL string
	client    *http.Client
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the client used to reach the issuer.
func WithHTTPClient(c *http.Client) Option {
	return func(cache *Cache) { cache.client = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(cache *Cache) { cache.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cache *Cache) { cache.log = l }
}

// NewCache creates a Cache fetching from issuerURL.
func NewCache(issuerURL string, opts ...Option) *Cache {
	c := &Cache{
		issuerURL: issuerURL,
		client:    http.DefaultClient,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Token returns a valid cached token, fetching a fresh one from the issuer
// when the cache is empty or expired. The shared fetch outlives the caller
// that started it, so canceling one caller never fails the others.
func (c *Cache) Token(ctx context.Context) (*oauth2.Token, error) {
	ch := c.flight.DoChan(flightKey, func() (any, error) {
		return c.getOrFetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug().Msg("joined in-flight connect token request")
		}
		return res.Val.(*oauth2.Token), nil
	}
}

func (c *Cache) getOrFetch(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.validLocked() {
		c.log.Debug().Msg("using cached connect token")
		return c.token, nil
	}
	if c.token != nil {
		c.log.Info().Msg("connect token expired, refreshing")
		c.token = nil
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("connect token fetch failed")
		return nil, err
	}
	c.token = tok
	c.log.Info().Time("expires_at", tok.Expiry).Msg("connect token fetched")

	return tok, nil
}

func (c *Cache) validLocked() bool {
	return c.token != nil && c.token.AccessToken != "" && c.now().Before(c.token.Expiry)
}

func (c *Cache) fetch(ctx context.Context) (*oauth2.Token, error) {
	fetchErr := func(status int, err error) error {
		return &CredentialFetchError{URL: c.issuerURL, Status: status, Err: err}
	}

	now := c.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.issuerURL, nil)
	if err != nil {
		return nil, fetchErr(0, fmt.Errorf("http.NewRequestWithContext failed: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fetchErr(0, fmt.Errorf("client.Do failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(resp.StatusCode, fmt.Errorf("io.ReadAll failed: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fetchErr(resp.StatusCode, fmt.Errorf("unexpected response: %s", Redact(string(body))))
	}

	var payload issuerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fetchErr(resp.StatusCode, fmt.Errorf("json.Unmarshal failed: %w", err))
	}
	if payload.Token == "" {
		return nil, fetchErr(resp.StatusCode, fmt.Errorf("response has no token"))
	}

	lifetime := DefaultTokenLifetime
	if payload.ExpiresIn > 0 {
		lifetime = time.Duration(payload.ExpiresIn) * time.Second
	}

	return &oauth2.Token{
		AccessToken: payload.Token,
		TokenType:   "Bearer",
		Expiry:      now.Add(lifetime),
	}, nil
}

// Invalidate drops the cached token. Safe to call repeatedly.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = nil
}

// Cached returns the cached token without fetching, expired or not.
func (c *Cache) Cached() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return nil, apperr.ErrTokenNotSet
	}

	return c.token, nil
}
