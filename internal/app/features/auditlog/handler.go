// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/clubhub/internal/app/store/audit"
	"github.com/dalemusser/clubhub/internal/app/system/apperr"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/app/system/respond"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const pageSize = 50

// Events reads the audit trail. *audit.Store satisfies it.
type Events interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
	GetBySubject(ctx context.Context, subjectID primitive.ObjectID, limit int64) ([]audit.Event, error)
}

// Handler serves the booking and payment audit trail.
type Handler struct {
	Events Events
	Log    *zap.Logger
}

func NewHandler(events Events, logger *zap.Logger) *Handler {
	return &Handler{Events: events, Log: logger}
}

type listResponse struct {
	Events   []audit.Event `json:"events"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

// ServeList handles GET /audit.
//
// Filters: category, event_type, email, booking_id, start_date and end_date
// (YYYY-MM-DD, inclusive), page.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseFilter(r)
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.Log.Error("audit query failed", zap.Error(err))
		respond.Error(w, h.Log, r, apperr.Store(err))
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.Log.Error("audit count failed", zap.Error(err))
		respond.Error(w, h.Log, r, apperr.Store(err))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	respond.JSON(w, http.StatusOK, listResponse{
		Events:   events,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// ServeBooking handles GET /audit/bookings/{id}: the most recent events for
// one booking, newest first.
func (h *Handler) ServeBooking(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		respond.Error(w, h.Log, r, apperr.Validation("invalid booking id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	events, err := h.Events.GetBySubject(ctx, id, pageSize)
	if err != nil {
		h.Log.Error("audit lookup failed", zap.String("booking_id", id.Hex()), zap.Error(err))
		respond.Error(w, h.Log, r, apperr.Store(err))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	respond.JSON(w, http.StatusOK, events)
}

func parseFilter(r *http.Request) (audit.QueryFilter, int, error) {
	q := r.URL.Query()

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
		Email:     normalize.Email(q.Get("email")),
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	switch filter.Category {
	case "", audit.CategoryBooking, audit.CategoryPayment:
	default:
		return audit.QueryFilter{}, 0, apperr.Validation("category must be booking or payment")
	}

	if raw := strings.TrimSpace(q.Get("booking_id")); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return audit.QueryFilter{}, 0, apperr.Validation("invalid booking id")
		}
		filter.SubjectID = &id
	}

	if raw := strings.TrimSpace(q.Get("start_date")); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return audit.QueryFilter{}, 0, apperr.Validation("start_date must be a date in YYYY-MM-DD format")
		}
		filter.StartTime = &t
	}
	if raw := strings.TrimSpace(q.Get("end_date")); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return audit.QueryFilter{}, 0, apperr.Validation("end_date must be a date in YYYY-MM-DD format")
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}
	return filter, page, nil
}
