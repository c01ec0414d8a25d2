// internal/app/features/bookings/routes.go
package bookings

import "github.com/go-chi/chi/v5"

// MountRoutes registers the booking endpoints on the supplied router. The
// paths are spread over several prefixes so they are registered directly
// rather than through a mounted subrouter.
func MountRoutes(r chi.Router, h *Handler) {
	r.Post("/bookings", h.Create)
	r.Patch("/bookings/{id}", h.Transition)
	r.Delete("/bookings/{id}", h.Delete)
	r.Get("/booking/{id}", h.Get)

	r.Get("/manage/booking", h.ListPending)
	r.Get("/pending/bookingStatus", h.ListPendingByEmail)
	r.Get("/approved/booking", h.ListApproved)
	r.Get("/confirmed-booking", h.ListConfirmed)
	r.Get("/confirmed-booking-members", h.ListConfirmed)
}
