// internal/app/features/members/handler.go
package members

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/clubhub/internal/app/system/apperr"
	"github.com/dalemusser/clubhub/internal/app/system/inputval"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/app/system/respond"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Users is the slice of the user store the member endpoints read and write.
type Users interface {
	Create(ctx context.Context, u models.User) (models.User, bool, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
}

// Handler serves club account lookups. Role changes happen only through
// booking approval; nothing here promotes or demotes.
type Handler struct {
	Users Users
	Log   *zap.Logger
}

func NewHandler(users Users, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger}
}

type registerRequest struct {
	Name  string `json:"name" validate:"max=200" label:"Name"`
	Email string `json:"email" validate:"required,email" label:"Email"`
}

type registerResponse struct {
	Message    string `json:"message,omitempty"`
	InsertedID string `json:"insertedId,omitempty"`
	Inserted   bool   `json:"inserted"`
}

// Register handles POST /users. New accounts always start as plain users.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	req.Email = normalize.Email(req.Email)
	if v := inputval.Validate(req); v.HasErrors() {
		respond.Error(w, h.Log, r, apperr.Validation(v.First()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, inserted, err := h.Users.Create(ctx, models.User{
		Name:  req.Name,
		Email: req.Email,
		Role:  models.RoleUser,
	})
	if err != nil {
		respond.Error(w, h.Log, r, apperr.Store(err))
		return
	}
	if !inserted {
		respond.JSON(w, http.StatusOK, registerResponse{Message: "User already exist", Inserted: false})
		return
	}
	h.Log.Info("user registered", zap.String("user_id", u.ID.Hex()))
	respond.JSON(w, http.StatusCreated, registerResponse{InsertedID: u.ID.Hex(), Inserted: true})
}

// List handles GET /users?role=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	role := normalize.QueryParam(r.URL.Query().Get("role"))
	switch role {
	case "", models.RoleUser, models.RoleMember, models.RoleAdmin:
	default:
		respond.Message(w, http.StatusBadRequest, "unknown role")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Users.ListByRole(ctx, role)
	if err != nil {
		respond.Error(w, h.Log, r, apperr.Store(err))
		return
	}
	respond.JSON(w, http.StatusOK, out)
}

type roleResponse struct {
	Role string `json:"role"`
}

// Role handles GET /users/{email}/role.
func (h *Handler) Role(w http.ResponseWriter, r *http.Request) {
	u, err := h.lookup(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	respond.JSON(w, http.StatusOK, roleResponse{Role: role})
}

// Member handles GET /users/role-member?email= and answers 404 unless the
// account has been promoted.
func (h *Handler) Member(w http.ResponseWriter, r *http.Request) {
	u, err := h.lookup(r.Context(), r.URL.Query().Get("email"))
	if err == nil && u.Role != models.RoleMember {
		err = apperr.NotFound("Member not found")
	}
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *Handler) lookup(ctx context.Context, email string) (*models.User, error) {
	email = normalize.Email(email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	return u, nil
}
