package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/clubhub/internal/app/system/respond"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// Handler reports database reachability and the payment breaker state.
type Handler struct {
	Client  Pinger
	Gateway func() string // payment gateway breaker state; nil omits it
	Log     *zap.Logger
}

// NewHandler builds a Handler. gateway may be nil.
func NewHandler(client Pinger, gateway func() string, logger *zap.Logger) *Handler {
	return &Handler{
		Client:  client,
		Gateway: gateway,
		Log:     logger,
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Gateway  string `json:"gateway,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "gateway":"closed" }
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
//
// An open gateway breaker is reported but does not fail the check; bookings
// keep working while card payments are unavailable.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "connected"}
	if h.Gateway != nil {
		resp.Gateway = h.Gateway()
	}

	status := http.StatusOK
	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
	}
	respond.JSON(w, status, resp)
}
