// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/clubhub/internal/app/service/booking"
	"github.com/dalemusser/clubhub/internal/app/service/intent"
	"github.com/dalemusser/clubhub/internal/app/service/payment"
	"github.com/dalemusser/clubhub/internal/app/service/promotion"
	"github.com/dalemusser/clubhub/internal/app/store/audit"
	bookingstore "github.com/dalemusser/clubhub/internal/app/store/bookings"
	paymentstore "github.com/dalemusser/clubhub/internal/app/store/payments"
	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/auditlog"
	"github.com/dalemusser/clubhub/internal/app/system/events"
	"github.com/dalemusser/clubhub/internal/app/system/gateway"
	"github.com/dalemusser/clubhub/internal/app/system/ratelimit"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"github.com/dalemusser/clubhub/internal/app/system/txn"
	"github.com/dalemusser/clubhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services is everything BuildHandler and Shutdown need from Startup.
type services struct {
	bookings   *booking.Service
	payments   *payment.Service
	intents    *intent.Service
	users      *userstore.Store
	audit      *audit.Store
	limiter    *ratelimit.Limiter // nil when rate limiting is off
	reconciler *workers.Reconciler
}

// Startup builds the stores and services once, after DB connections and
// schema setup are complete but before the HTTP handler is built, and starts
// the payment reconciler.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(appCfg.Timeouts)
	*deps.app = *buildServices(appCfg, deps, logger)
	if deps.app.reconciler != nil {
		deps.app.reconciler.Start()
	}
	return nil
}

func buildServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *services {
	db := deps.ClubMongoDatabase
	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}

	bookings := bookingstore.New(db)
	payments := paymentstore.New(db)
	users := userstore.New(db)
	auditStore := audit.New(db)
	auditLog := auditlog.New(auditStore, logger, auditlog.Config{
		Booking: appCfg.AuditLogBooking,
		Payment: appCfg.AuditLogPayment,
	})
	runner := txn.New(deps.ClubMongoClient, logger)

	var gw gateway.Gateway = gateway.Unconfigured{}
	if appCfg.StripeSecretKey != "" {
		gw = gateway.NewStripe(appCfg.StripeSecretKey, nil)
	} else {
		logger.Warn("stripe_secret_key not set; card payments are disabled")
	}

	s := &services{
		bookings: booking.New(bookings, promotion.New(users, logger), runner, pub, auditLog, logger),
		payments: payment.New(bookings, payments, runner, pub, auditLog, logger),
		intents: intent.New(gw, intent.Config{
			Currencies:      appCfg.PaymentCurrencies,
			BreakerFailures: appCfg.BreakerFailures,
			BreakerCooldown: appCfg.BreakerCooldown,
		}, logger),
		users: users,
		audit: auditStore,
	}
	if appCfg.PaymentRateLimit > 0 {
		s.limiter = ratelimit.New(appCfg.PaymentRateLimit, time.Minute)
	}
	if appCfg.ReconcileInterval > 0 {
		s.reconciler = workers.NewReconciler(bookings, payments, auditLog, logger, workers.ReconcilerConfig{
			Interval: appCfg.ReconcileInterval,
			Grace:    appCfg.ReconcileGrace,
			Lookback: appCfg.ReconcileLookback,
		})
	} else {
		logger.Info("payment reconciler disabled")
	}
	return s
}
