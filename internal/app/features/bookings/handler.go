package bookings

import (
	"context"
	"net/http"

	"github.com/dalemusser/clubhub/internal/app/service/booking"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/app/system/respond"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the booking endpoints.
type Handler struct {
	Svc *booking.Service
	Log *zap.Logger
}

func NewHandler(svc *booking.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

type createRequest struct {
	Email     string   `json:"email"`
	Amount    int64    `json:"amount"`
	CourtID   string   `json:"court_id"`
	CourtName string   `json:"court_name"`
	CourtType string   `json:"court_type"`
	Date      string   `json:"date"`
	Slots     []string `json:"slots"`
	Notes     string   `json:"notes"`
}

type createResponse struct {
	InsertedID string         `json:"insertedId"`
	Booking    models.Booking `json:"booking"`
}

// Create handles POST /bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	b, err := h.Svc.Create(ctx, booking.CreateInput{
		Email:     req.Email,
		Amount:    req.Amount,
		CourtID:   req.CourtID,
		CourtName: req.CourtName,
		CourtType: req.CourtType,
		Date:      req.Date,
		Slots:     req.Slots,
		Notes:     req.Notes,
	})
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, createResponse{InsertedID: b.ID.Hex(), Booking: b})
}

type transitionRequest struct {
	Status        models.BookingStatus `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Email         string               `json:"email"`
}

type transitionResponse struct {
	Message string `json:"message"`
	booking.TransitionResult
}

// Transition handles PATCH /bookings/{id}.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "booking transition")
	defer cancel()

	res, err := h.Svc.Transition(ctx, chi.URLParam(r, "id"), req.Status, req.PaymentStatus, req.Email)
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}

	msg := "Booking updated successfully"
	if res.Outcome == booking.OutcomeUnchanged {
		msg = "Booking already up to date"
	}
	respond.JSON(w, http.StatusOK, transitionResponse{Message: msg, TransitionResult: res})
}

// Get handles GET /booking/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	b, err := h.Svc.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, b)
}

// Delete handles DELETE /bookings/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Svc.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	respond.Message(w, http.StatusOK, "Booking deleted successfully")
}

// ListPending handles GET /manage/booking.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, func(ctx context.Context) ([]models.Booking, error) {
		return h.Svc.ListPending(ctx)
	})
}

// ListPendingByEmail handles GET /pending/bookingStatus?email=.
func (h *Handler) ListPendingByEmail(w http.ResponseWriter, r *http.Request) {
	email := normalize.QueryParam(r.URL.Query().Get("email"))
	h.list(w, r, func(ctx context.Context) ([]models.Booking, error) {
		return h.Svc.ListPendingByEmail(ctx, email)
	})
}

// ListApproved handles GET /approved/booking?email=.
func (h *Handler) ListApproved(w http.ResponseWriter, r *http.Request) {
	email := normalize.QueryParam(r.URL.Query().Get("email"))
	h.list(w, r, func(ctx context.Context) ([]models.Booking, error) {
		return h.Svc.ListApprovedUnpaid(ctx, email)
	})
}

// ListConfirmed handles GET /confirmed-booking and
// GET /confirmed-booking-members?email=. The email filter is optional.
func (h *Handler) ListConfirmed(w http.ResponseWriter, r *http.Request) {
	email := normalize.QueryParam(r.URL.Query().Get("email"))
	h.list(w, r, func(ctx context.Context) ([]models.Booking, error) {
		return h.Svc.ListPaid(ctx, email)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) ([]models.Booking, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := fn(ctx)
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}
