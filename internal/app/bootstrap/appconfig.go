// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Payment provider
	StripeSecretKey   string        // blank disables card payments
	PaymentCurrencies []string      // accepted ISO codes; the first is the default
	BreakerFailures   uint32        // consecutive provider outages before the breaker opens
	BreakerCooldown   time.Duration // how long the breaker stays open
	PaymentRateLimit  int           // POSTs per client per minute on the payment endpoints; 0 disables

	// Lifecycle events
	AMQPURL      string // blank disables publishing
	AMQPExchange string

	// Reconciler
	ReconcileInterval time.Duration // 0 disables the worker
	ReconcileGrace    time.Duration
	ReconcileLookback time.Duration

	// Handler deadlines; zero fields keep the package defaults
	Timeouts timeouts.Config

	// Audit logging: 'all', 'db', 'log', or 'off'
	AuditLogBooking string
	AuditLogPayment string
}
