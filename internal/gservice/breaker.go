package gservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"

	"github.com/hal9000y/mail-assistant/internal/apperr"
	"github.com/hal9000y/mail-assistant/internal/draft"
)

// BreakerSettings tunes BreakerGateway.
type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// BreakerGateway fails fast while the wrapped gateway keeps failing.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerGateway wraps next with a circuit breaker.
func NewBreakerGateway(next Gateway, s BreakerSettings, log zerolog.Logger) *BreakerGateway {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}

	return &BreakerGateway{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        s.Name,
			MaxRequests: 1,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= s.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("gateway breaker state changed")
			},
		}),
	}
}

func (b *BreakerGateway) Execute(ctx context.Context, action Action, tok *oauth2.Token, d draft.Draft) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Execute(ctx, action, tok, d)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.GatewayCall(0, fmt.Errorf("gateway unavailable: %w", err))
	}
	return err
}
