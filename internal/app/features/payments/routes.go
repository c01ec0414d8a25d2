// internal/app/features/payments/routes.go
package payments

import (
	"github.com/dalemusser/clubhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the payment endpoints on the supplied router. When
// limiter is non-nil the two POST endpoints share its per-client budget.
func MountRoutes(r chi.Router, h *Handler, limiter *ratelimit.Limiter) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(ratelimit.Middleware(limiter, h.Log))
		}
		r.Post("/create-payment-intent", h.CreateIntent)
		r.Post("/payments", h.Record)
	})
	r.Get("/payment-history", h.History)
}
