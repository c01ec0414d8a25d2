// internal/app/system/gateway/gateway.go
//
// Package gateway talks to the card payment provider. It knows nothing about
// bookings; the intent service validates input and decides how failures are
// reported.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Intent is a created payment intent. ClientSecret is handed to the browser,
// which confirms the card payment directly with the provider.
type Intent struct {
	ID           string
	ClientSecret string
}

// Gateway creates payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency, idempotencyKey string) (Intent, error)
}

// Error is returned for every provider failure. Message is the provider's
// human-readable text and is safe to show to the payer.
//
// Rejected is true when the provider refused this particular request (bad
// amount, unsupported currency, reused idempotency key) as opposed to being
// unreachable or failing internally.
type Error struct {
	Message  string
	Rejected bool
	Err      error
}

func (e *Error) Error() string { return "payment gateway: " + e.Message }
func (e *Error) Unwrap() error { return e.Err }

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Stripe is the Gateway backed by the Stripe API.
type Stripe struct {
	sc *client.API
}

// NewStripe builds a Stripe gateway for the secret key. backends may be nil to
// use the library's default HTTP backends.
func NewStripe(secretKey string, backends *stripe.Backends) *Stripe {
	return &Stripe{sc: client.New(secretKey, backends)}
}

// CreateIntent implements Gateway. Only card payments are enabled.
func (s *Stripe) CreateIntent(ctx context.Context, amount int64, currency, idempotencyKey string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := s.sc.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, translate(err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// translate keeps only the provider's message. Request ids, codes and raw
// bodies stay in Err for logging.
func translate(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &Error{Message: "payment provider unavailable", Err: err}
	}

	msg := strings.TrimSpace(se.Msg)
	if msg == "" {
		msg = "payment provider error"
	}
	switch se.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
		return &Error{Message: msg, Rejected: true, Err: err}
	}
	return &Error{Message: msg, Err: err}
}

// Unconfigured fails every call. Bootstrap installs it when no secret key is
// set outside production so the rest of the service still runs.
type Unconfigured struct{}

func (Unconfigured) CreateIntent(context.Context, int64, string, string) (Intent, error) {
	return Intent{}, &Error{Message: "payment provider not configured"}
}
