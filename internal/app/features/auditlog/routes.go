// internal/app/features/auditlog/routes.go
package auditlog

import "github.com/go-chi/chi/v5"

// Routes mounts the audit log routes under the path where this
// router is mounted (typically "/audit" from bootstrap).
//
// Access control is the caller's concern; this service trusts its gateway.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Get("/bookings/{id}", h.ServeBooking)
	return r
}
