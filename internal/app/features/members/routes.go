// internal/app/features/members/routes.go
package members

import "github.com/go-chi/chi/v5"

// Routes mounts the account routes under the path where the caller mounts it.
// Typically: r.Mount("/users", members.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Register)
	r.Get("/role-member", h.Member)
	r.Get("/{email}/role", h.Role)
	return r
}
