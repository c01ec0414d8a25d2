package payments

import (
	"context"
	"net/http"

	"github.com/dalemusser/clubhub/internal/app/service/intent"
	"github.com/dalemusser/clubhub/internal/app/service/payment"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/app/system/respond"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the client's retry key for intent creation.
const IdempotencyHeader = "Idempotency-Key"

// Handler serves the payment endpoints.
type Handler struct {
	Intents  *intent.Service
	Payments *payment.Service
	Log      *zap.Logger
}

func NewHandler(intents *intent.Service, payments *payment.Service, logger *zap.Logger) *Handler {
	return &Handler{Intents: intents, Payments: payments, Log: logger}
}

type intentRequest struct {
	AmountInCents int64  `json:"amountInCents"`
	Currency      string `json:"currency"`
}

type intentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreateIntent handles POST /create-payment-intent.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create payment intent")
	defer cancel()

	secret, err := h.Intents.CreateIntent(ctx, req.AmountInCents, req.Currency, r.Header.Get(IdempotencyHeader))
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, intentResponse{ClientSecret: secret})
}

type recordRequest struct {
	PaymentData *struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Amount        int64  `json:"amount"`
		TransactionID string `json:"transactionId"`
	} `json:"paymentData"`
}

type recordResponse struct {
	Message    string `json:"message"`
	InsertedID string `json:"insertedId"`
	payment.RecordResult
}

// Record handles POST /payments.
func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	if req.PaymentData == nil {
		respond.Message(w, http.StatusBadRequest, "Missing payment details")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "record payment")
	defer cancel()

	res, err := h.Payments.Record(ctx, payment.RecordInput{
		BookingID:     req.PaymentData.ID,
		Email:         req.PaymentData.Email,
		Amount:        req.PaymentData.Amount,
		TransactionID: req.PaymentData.TransactionID,
	})
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}

	msg := "Payment recorded and booking marked as paid"
	if res.Replayed {
		msg = "Payment already recorded"
	}
	respond.JSON(w, http.StatusOK, recordResponse{
		Message:      msg,
		InsertedID:   res.Payment.ID.Hex(),
		RecordResult: res,
	})
}

// History handles GET /payment-history?email=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Payments.History(ctx, normalize.QueryParam(r.URL.Query().Get("email")))
	if err != nil {
		respond.Error(w, h.Log, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}
