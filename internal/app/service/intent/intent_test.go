package intent_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/clubhub/internal/app/service/intent"
	"github.com/dalemusser/clubhub/internal/app/system/apperr"
	"github.com/dalemusser/clubhub/internal/app/system/gateway"
	"go.uber.org/zap"
)

type call struct {
	amount   int64
	currency string
	key      string
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeGateway) CreateIntent(_ context.Context, amount int64, currency, key string) (gateway.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{amount, currency, key})
	if f.err != nil {
		return gateway.Intent{}, f.err
	}
	return gateway.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_abc"}, nil
}

func (f *fakeGateway) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestCreateIntent(t *testing.T) {
	gw := &fakeGateway{}
	svc := intent.New(gw, intent.Config{}, zap.NewNop())

	secret, err := svc.CreateIntent(context.Background(), 2500, "", " key-1 ")
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}
	if secret != "pi_1_secret_abc" {
		t.Errorf("secret = %q", secret)
	}
	if got := gw.calls[0]; got != (call{2500, "usd", "key-1"}) {
		t.Errorf("gateway call = %+v", got)
	}
}

func TestCreateIntent_Validation(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		currency string
	}{
		{"zero", 0, "usd"},
		{"negative", -100, "usd"},
		{"too large", intent.MaxAmount + 1, "usd"},
		{"bad currency code", 100, "dollars"},
		{"not allowed", 100, "eur"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			svc := intent.New(gw, intent.Config{Currencies: []string{"usd"}}, zap.NewNop())

			_, err := svc.CreateIntent(context.Background(), tt.amount, tt.currency, "")
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if gw.count() != 0 {
				t.Error("invalid requests must not reach the provider")
			}
		})
	}
}

func TestCreateIntent_CurrencyAllowList(t *testing.T) {
	gw := &fakeGateway{}
	svc := intent.New(gw, intent.Config{Currencies: []string{" EUR ", "usd"}}, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.CreateIntent(ctx, 100, "USD", ""); err != nil {
		t.Fatalf("CreateIntent(USD) failed: %v", err)
	}
	if _, err := svc.CreateIntent(ctx, 100, "", ""); err != nil {
		t.Fatalf("CreateIntent(default) failed: %v", err)
	}
	if gw.calls[0].currency != "usd" || gw.calls[1].currency != "eur" {
		t.Errorf("calls = %+v, want usd then the first configured currency", gw.calls)
	}
}

func TestCreateIntent_ProviderMessageOnly(t *testing.T) {
	gw := &fakeGateway{err: &gateway.Error{
		Message:  "Amount must be at least $0.50 usd",
		Rejected: true,
		Err:      errors.New("request req_123: parameter_invalid_integer"),
	}}
	svc := intent.New(gw, intent.Config{}, zap.NewNop())

	_, err := svc.CreateIntent(context.Background(), 10, "usd", "")
	if !apperr.Is(err, apperr.KindGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if got := apperr.PublicMessage(err); got != "Amount must be at least $0.50 usd" {
		t.Errorf("PublicMessage = %q", got)
	}
}

func TestCreateIntent_BreakerOpensOnOutages(t *testing.T) {
	gw := &fakeGateway{err: &gateway.Error{Message: "payment provider unavailable"}}
	svc := intent.New(gw, intent.Config{BreakerFailures: 3, BreakerCooldown: time.Hour}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateIntent(ctx, 100, "usd", ""); !apperr.Is(err, apperr.KindGateway) {
			t.Fatalf("call %d: expected gateway error, got %v", i, err)
		}
	}
	if svc.BreakerState() != "open" {
		t.Fatalf("breaker state = %s, want open", svc.BreakerState())
	}

	_, err := svc.CreateIntent(ctx, 100, "usd", "")
	if got := apperr.PublicMessage(err); got != "payment provider unavailable" {
		t.Errorf("open breaker message = %q", got)
	}
	if gw.count() != 3 {
		t.Errorf("provider calls = %d, want 3 (open breaker fails fast)", gw.count())
	}
}

func TestCreateIntent_RejectionsDoNotTrip(t *testing.T) {
	gw := &fakeGateway{err: &gateway.Error{Message: "Your card was declined.", Rejected: true}}
	svc := intent.New(gw, intent.Config{BreakerFailures: 2, BreakerCooldown: time.Hour}, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, _ = svc.CreateIntent(context.Background(), 100, "usd", "")
	}
	if svc.BreakerState() != "closed" {
		t.Errorf("breaker state = %s, want closed", svc.BreakerState())
	}
	if gw.count() != 5 {
		t.Errorf("provider calls = %d, want 5", gw.count())
	}
}

func TestCreateIntent_NoRetry(t *testing.T) {
	gw := &fakeGateway{err: errors.New("connection reset")}
	svc := intent.New(gw, intent.Config{}, zap.NewNop())

	_, err := svc.CreateIntent(context.Background(), 100, "usd", "")
	if !apperr.Is(err, apperr.KindGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if gw.count() != 1 {
		t.Errorf("provider calls = %d, want exactly 1", gw.count())
	}
}
