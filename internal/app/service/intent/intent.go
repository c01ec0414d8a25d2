// Package intent validates payment-intent requests and forwards them to the
// payment gateway behind a circuit breaker.
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/clubhub/internal/app/system/apperr"
	"github.com/dalemusser/clubhub/internal/app/system/gateway"
	"github.com/dalemusser/clubhub/internal/app/system/inputval"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultCurrency        = "usd"
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

// MaxAmount is the largest amount accepted, in minor units. It matches the
// provider's eight-digit limit.
const MaxAmount = 99_999_999

// Config controls the adapter.
type Config struct {
	// Currencies is the allow-list of lowercase ISO codes. The first entry is
	// used when a request names no currency.
	Currencies []string
	// BreakerFailures is how many consecutive provider outages open the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before a trial call.
	BreakerCooldown time.Duration
}

type Service struct {
	gw         gateway.Gateway
	cb         *gobreaker.CircuitBreaker
	currencies map[string]bool
	fallback   string
	log        *zap.Logger
}

func New(gw gateway.Gateway, cfg Config, logger *zap.Logger) *Service {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = DefaultBreakerCooldown
	}

	s := &Service{gw: gw, currencies: map[string]bool{}, log: logger}
	for _, c := range cfg.Currencies {
		if c = normalize.Currency(c); c == "" {
			continue
		}
		if s.fallback == "" {
			s.fallback = c
		}
		s.currencies[c] = true
	}
	if s.fallback == "" {
		s.fallback = DefaultCurrency
		s.currencies[DefaultCurrency] = true
	}

	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A request the provider refused says nothing about its health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			ge, ok := gateway.AsError(err)
			return ok && ge.Rejected
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return s
}

// Request is the validated shape of an intent request.
type Request struct {
	Amount   int64  `validate:"gt=0,max=99999999" label:"Amount"`
	Currency string `validate:"required,currency" label:"Currency"`
}

// CreateIntent returns the client secret for a new card payment intent.
// idempotencyKey is optional and forwarded to the provider as-is.
func (s *Service) CreateIntent(ctx context.Context, amount int64, currency, idempotencyKey string) (string, error) {
	req := Request{Amount: amount, Currency: normalize.Currency(currency)}
	if req.Currency == "" {
		req.Currency = s.fallback
	}
	if r := inputval.Validate(req); r.HasErrors() {
		return "", apperr.Validation(r.First())
	}
	if !s.currencies[req.Currency] {
		return "", apperr.Validation(fmt.Sprintf("currency %q is not accepted", req.Currency))
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.gw.CreateIntent(ctx, req.Amount, req.Currency, strings.TrimSpace(idempotencyKey))
	})
	if err != nil {
		return "", s.gatewayError(err)
	}
	return res.(gateway.Intent).ClientSecret, nil
}

func (s *Service) gatewayError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Gateway("payment provider unavailable", err)
	}
	if ge, ok := gateway.AsError(err); ok {
		s.log.Warn("payment intent failed",
			zap.Bool("rejected", ge.Rejected),
			zap.String("provider_message", ge.Message),
			zap.Error(ge.Err))
		return apperr.Gateway(ge.Message, err)
	}
	s.log.Error("payment intent failed", zap.Error(err))
	return apperr.Gateway("payment provider unavailable", err)
}

// BreakerState reports the breaker state, for health output.
func (s *Service) BreakerState() string {
	return s.cb.State().String()
}
