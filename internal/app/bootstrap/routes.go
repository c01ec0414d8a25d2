// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"

	auditlogfeature "github.com/dalemusser/clubhub/internal/app/features/auditlog"
	bookingsfeature "github.com/dalemusser/clubhub/internal/app/features/bookings"
	errorsfeature "github.com/dalemusser/clubhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/clubhub/internal/app/features/health"
	membersfeature "github.com/dalemusser/clubhub/internal/app/features/members"
	paymentsfeature "github.com/dalemusser/clubhub/internal/app/features/payments"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. CORS, request logging and TLS are applied
// by WAFFLE around the returned handler.
//
// ClubHub serves a JSON API only: booking lifecycle, payments, and account
// lookups, the audit trail, plus the health check.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.app == nil || deps.app.bookings == nil {
		return nil, fmt.Errorf("services not initialized; Startup must run before BuildHandler")
	}
	return newRouter(deps, logger), nil
}

func newRouter(deps DBDeps, logger *zap.Logger) chi.Router {
	svc := deps.app
	r := chi.NewRouter()

	errorsHandler := errorsfeature.NewHandler(logger)
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.ClubMongoClient, svc.intents.BreakerState, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Booking lifecycle
	bookingsfeature.MountRoutes(r, bookingsfeature.NewHandler(svc.bookings, logger))

	// Payment intents and recording
	paymentsfeature.MountRoutes(r, paymentsfeature.NewHandler(svc.intents, svc.payments, logger), svc.limiter)

	// Accounts
	r.Mount("/users", membersfeature.Routes(membersfeature.NewHandler(svc.users, logger)))

	// Audit trail
	r.Mount("/audit", auditlogfeature.Routes(auditlogfeature.NewHandler(svc.audit, logger)))

	return r
}
