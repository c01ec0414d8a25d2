// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/clubhub/internal/app/service/intent"
	"github.com/dalemusser/clubhub/internal/app/system/events"
	"github.com/dalemusser/clubhub/internal/app/system/inputval"
	"github.com/dalemusser/clubhub/internal/app/system/limits"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for ClubHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, stripe_secret_key, etc.
//   - Environment variables: CLUBHUB_MONGO_URI, CLUBHUB_STRIPE_SECRET_KEY, etc.
//   - Command-line flags: --mongo_uri, --stripe_secret_key, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "sports_club_management", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Payment provider
	{Name: "stripe_secret_key", Default: "", Desc: "Stripe secret key (blank disables card payments; required in prod)"},
	{Name: "payment_currencies", Default: intent.DefaultCurrency, Desc: "Comma-separated accepted currencies; the first is the default"},
	{Name: "gateway_breaker_failures", Default: intent.DefaultBreakerFailures, Desc: "Consecutive provider outages that open the circuit breaker"},
	{Name: "gateway_breaker_cooldown", Default: "30s", Desc: "How long the breaker stays open before a trial request"},
	{Name: "payment_rate_limit", Default: limits.PaymentRequestsPerMinute, Desc: "Payment POSTs per client per minute (0 disables)"},

	// Lifecycle events
	{Name: "amqp_url", Default: "", Desc: "RabbitMQ URL for lifecycle events (blank disables)"},
	{Name: "amqp_exchange", Default: events.DefaultExchange, Desc: "Topic exchange for lifecycle events"},

	// Reconciler
	{Name: "reconcile_interval", Default: "1m", Desc: "How often bookings and payments are reconciled (0 disables)"},
	{Name: "reconcile_grace", Default: "5m", Desc: "Minimum age of a paid booking before it is checked for a payment"},
	{Name: "reconcile_lookback", Default: "24h", Desc: "How far back payments are scanned for unpaid bookings"},

	// Handler deadlines
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document reads"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for list queries and single writes"},
	{Name: "timeout_long", Default: "30s", Desc: "Deadline for multi-collection writes and payment-provider calls"},

	// Audit logging settings
	{Name: "audit_log_booking", Default: "all", Desc: "Booking event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_payment", Default: "all", Desc: "Payment event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, CLUBHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CLUBHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		StripeSecretKey:   strings.TrimSpace(appValues.String("stripe_secret_key")),
		PaymentCurrencies: parseCurrencies(appValues.String("payment_currencies")),
		BreakerFailures:   uint32(appValues.Int("gateway_breaker_failures")),
		BreakerCooldown:   appValues.Duration("gateway_breaker_cooldown", intent.DefaultBreakerCooldown),
		PaymentRateLimit:  appValues.Int("payment_rate_limit"),

		AMQPURL:      strings.TrimSpace(appValues.String("amqp_url")),
		AMQPExchange: appValues.String("amqp_exchange"),

		ReconcileInterval: appValues.Duration("reconcile_interval", time.Minute),
		ReconcileGrace:    appValues.Duration("reconcile_grace", 5*time.Minute),
		ReconcileLookback: appValues.Duration("reconcile_lookback", 24*time.Hour),

		Timeouts: timeouts.Config{
			Short:  appValues.Duration("timeout_short", timeouts.DefaultShort),
			Medium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
			Long:   appValues.Duration("timeout_long", timeouts.DefaultLong),
		},

		AuditLogBooking: appValues.String("audit_log_booking"),
		AuditLogPayment: appValues.String("audit_log_payment"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// ClubHub validates the MongoDB URI format to catch configuration errors
// early, before attempting to connect, and refuses to run in production
// without a payment provider key.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

func validateApp(env string, appCfg AppConfig) error {
	if env == "prod" && appCfg.StripeSecretKey == "" {
		return fmt.Errorf("stripe_secret_key is required when env is prod")
	}
	if len(appCfg.PaymentCurrencies) == 0 {
		return fmt.Errorf("payment_currencies must name at least one currency")
	}
	for _, c := range appCfg.PaymentCurrencies {
		if !inputval.IsValidCurrency(c) {
			return fmt.Errorf("payment_currencies: %q is not a three-letter currency code", c)
		}
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)", appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}
	if appCfg.Timeouts.Short < 0 || appCfg.Timeouts.Medium < 0 || appCfg.Timeouts.Long < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if appCfg.PaymentRateLimit < 0 {
		return fmt.Errorf("payment_rate_limit must not be negative")
	}
	for name, v := range map[string]string{"audit_log_booking": appCfg.AuditLogBooking, "audit_log_payment": appCfg.AuditLogPayment} {
		switch v {
		case "", "all", "db", "log", "off":
		default:
			return fmt.Errorf("%s: unknown setting %q", name, v)
		}
	}
	return nil
}

// parseCurrencies splits a comma-separated list, normalizing and dropping
// blanks and repeats while keeping order.
func parseCurrencies(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		c := normalize.Currency(part)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
