// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/clubhub/internal/app/store/audit"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Booking controls logging for booking lifecycle events (create, decide, delete, promotion).
	Booking string
	// Payment controls logging for payment recording and reconciliation events.
	Payment string
}

// Store persists audit events. *audit.Store satisfies it.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via Store) and structured logs (via zap).
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.SubjectID != nil {
		fields = append(fields, zap.String("booking_id", event.SubjectID.Hex()))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// An empty setting is treated as "all".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryBooking:
		setting = l.config.Booking
	case audit.CategoryPayment:
		setting = l.config.Payment
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}

	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Booking Events ---

// BookingCreated logs a new booking request.
func (l *Logger) BookingCreated(ctx context.Context, b models.Booking) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryBooking,
		EventType: audit.EventBookingCreated,
		SubjectID: &b.ID,
		Email:     b.Email,
		Success:   true,
		Details: map[string]string{
			"amount": strconv.FormatInt(b.Amount, 10),
		},
	})
}

// BookingDecided logs a pending booking moving to approved or rejected.
func (l *Logger) BookingDecided(ctx context.Context, b models.Booking, from models.BookingStatus) {
	eventType := audit.EventBookingRejected
	if b.Status == models.BookingApproved {
		eventType = audit.EventBookingApproved
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryBooking,
		EventType: eventType,
		SubjectID: &b.ID,
		Email:     b.Email,
		Success:   true,
		Details: map[string]string{
			"from": string(from),
			"to":   string(b.Status),
		},
	})
}

// BookingDeleted logs a booking removal.
func (l *Logger) BookingDeleted(ctx context.Context, bookingID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryBooking,
		EventType: audit.EventBookingDeleted,
		SubjectID: &bookingID,
		Success:   true,
	})
}

// MemberPromoted logs a user becoming a member because a booking was approved.
func (l *Logger) MemberPromoted(ctx context.Context, bookingID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryBooking,
		EventType: audit.EventMemberPromoted,
		SubjectID: &bookingID,
		Email:     email,
		Success:   true,
	})
}

// --- Payment Events ---

// PaymentRecorded logs a payment written to the ledger. replayed marks a
// repeated submission that returned the existing record.
func (l *Logger) PaymentRecorded(ctx context.Context, p models.Payment, replayed bool) {
	eventType := audit.EventPaymentRecorded
	if replayed {
		eventType = audit.EventPaymentReplayed
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: eventType,
		SubjectID: &p.BookingID,
		Email:     p.Email,
		Success:   true,
		Details: map[string]string{
			"transaction_id": p.TransactionID,
			"amount":         strconv.FormatInt(p.Amount, 10),
		},
	})
}

// PaymentRejected logs a payment that could not be recorded.
func (l *Logger) PaymentRejected(ctx context.Context, bookingID primitive.ObjectID, email, transactionID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryPayment,
		EventType:     audit.EventPaymentRejected,
		SubjectID:     &bookingID,
		Email:         email,
		Success:       false,
		FailureReason: reason,
		Details: map[string]string{
			"transaction_id": transactionID,
		},
	})
}

// PaymentReconciled logs the reconciler marking a booking paid because its
// payment record exists.
func (l *Logger) PaymentReconciled(ctx context.Context, p models.Payment) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: audit.EventPaymentReconciled,
		SubjectID: &p.BookingID,
		Email:     p.Email,
		Success:   true,
		Details: map[string]string{
			"transaction_id": p.TransactionID,
		},
	})
}

// PaymentReverted logs the reconciler reverting a booking left paid without a
// payment record.
func (l *Logger) PaymentReverted(ctx context.Context, b models.Booking) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryPayment,
		EventType:     audit.EventPaymentReverted,
		SubjectID:     &b.ID,
		Email:         b.Email,
		Success:       false,
		FailureReason: "no payment record",
	})
}
