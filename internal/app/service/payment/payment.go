// Package payment records client-confirmed card payments against approved
// bookings and serves payment history.
//
// Recording is exactly-once per provider transaction: a repeated submission
// of the same transaction for the same booking returns the original record.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	bookingstore "github.com/dalemusser/clubhub/internal/app/store/bookings"
	paymentstore "github.com/dalemusser/clubhub/internal/app/store/payments"
	"github.com/dalemusser/clubhub/internal/app/system/apperr"
	"github.com/dalemusser/clubhub/internal/app/system/auditlog"
	"github.com/dalemusser/clubhub/internal/app/system/events"
	"github.com/dalemusser/clubhub/internal/app/system/inputval"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/app/system/txn"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Bookings is the part of the booking store the recorder writes.
type Bookings interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, at time.Time) (bookingstore.UpdateResult, error)
	MarkUnpaid(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// Payments is the payment ledger.
type Payments interface {
	Insert(ctx context.Context, p models.Payment) (models.Payment, error)
	GetByTransactionID(ctx context.Context, txID string) (*models.Payment, error)
	ListByEmail(ctx context.Context, email string) ([]models.Payment, error)
}

// RecordInput is what the browser reports after confirming a card payment.
type RecordInput struct {
	BookingID     string `validate:"required,objectid" label:"Booking id"`
	Email         string `validate:"required,email" label:"Email"`
	Amount        int64  `validate:"gt=0" label:"Amount"`
	TransactionID string `validate:"required,max=255" label:"Transaction id"`
}

// RecordResult describes a recorded payment. On a replay BookingUpdate is
// zero and nothing was written.
type RecordResult struct {
	Payment       models.Payment            `json:"payment"`
	BookingUpdate bookingstore.UpdateResult `json:"bookingUpdateResult"`
	Replayed      bool                      `json:"replayed"`
}

type Service struct {
	bookings Bookings
	payments Payments
	runner   txn.Runner
	events   events.Publisher
	audit    *auditlog.Logger
	log      *zap.Logger
	now      func() time.Time
}

// New builds the recorder. pub and audit may be nil.
func New(bookings Bookings, payments Payments, runner txn.Runner, pub events.Publisher, audit *auditlog.Logger, logger *zap.Logger) *Service {
	return &Service{
		bookings: bookings,
		payments: payments,
		runner:   runner,
		events:   pub,
		audit:    audit,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record marks the booking paid and appends the payment, all or nothing.
func (s *Service) Record(ctx context.Context, in RecordInput) (RecordResult, error) {
	in.BookingID = strings.TrimSpace(in.BookingID)
	in.Email = normalize.Email(in.Email)
	in.TransactionID = normalize.Token(in.TransactionID)
	if r := inputval.Validate(in); r.HasErrors() {
		return RecordResult{}, apperr.Validation(r.First())
	}
	bookingID, _ := primitive.ObjectIDFromHex(in.BookingID)

	if res, done, err := s.replay(ctx, bookingID, in); done {
		return res, err
	}

	at := s.now().Truncate(time.Millisecond)
	var result RecordResult
	err := s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		upd, err := s.bookings.MarkPaid(ctx, bookingID, at)
		if err != nil {
			return apperr.Store(err)
		}
		if upd.Matched == 0 {
			return s.whyNotPayable(ctx, bookingID)
		}
		tx.OnRollback(func(ctx context.Context) error {
			_, err := s.bookings.MarkUnpaid(ctx, bookingID)
			return err
		})
		s.warnOnMismatch(ctx, bookingID, in)

		p, err := s.payments.Insert(ctx, models.Payment{
			BookingID:     bookingID,
			Email:         in.Email,
			Amount:        in.Amount,
			TransactionID: in.TransactionID,
			PaymentDate:   at,
		})
		if errors.Is(err, paymentstore.ErrDuplicate) {
			return apperr.Conflict("payment already recorded")
		}
		if err != nil {
			return apperr.Store(err)
		}
		result = RecordResult{Payment: p, BookingUpdate: upd}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Store(err)
		}
		s.log.Warn("record payment failed",
			zap.String("booking_id", in.BookingID),
			zap.String("transaction_id", in.TransactionID),
			zap.Error(err))
		s.audit.PaymentRejected(ctx, bookingID, in.Email, in.TransactionID, apperr.PublicMessage(err))
		return RecordResult{}, err
	}

	s.audit.PaymentRecorded(ctx, result.Payment, false)
	events.Emit(ctx, s.events, s.log, events.PaymentRecorded, events.PaymentRecord{
		PaymentID:     result.Payment.ID.Hex(),
		BookingID:     in.BookingID,
		Email:         result.Payment.Email,
		Amount:        result.Payment.Amount,
		TransactionID: result.Payment.TransactionID,
		PaymentDate:   result.Payment.PaymentDate,
	})
	s.log.Info("payment recorded",
		zap.String("booking_id", in.BookingID),
		zap.String("transaction_id", in.TransactionID),
		zap.Int64("amount", in.Amount))
	return result, nil
}

// replay handles a transaction id that is already in the ledger. done is
// false when the caller should go on to record.
func (s *Service) replay(ctx context.Context, bookingID primitive.ObjectID, in RecordInput) (RecordResult, bool, error) {
	existing, err := s.payments.GetByTransactionID(ctx, in.TransactionID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return RecordResult{}, false, nil
	}
	if err != nil {
		s.log.Error("lookup payment failed", zap.String("transaction_id", in.TransactionID), zap.Error(err))
		return RecordResult{}, true, apperr.Store(err)
	}
	if existing.BookingID != bookingID {
		s.audit.PaymentRejected(ctx, bookingID, in.Email, in.TransactionID, "transaction already used")
		return RecordResult{}, true, apperr.Conflict("transaction already recorded for another booking")
	}
	s.audit.PaymentRecorded(ctx, *existing, true)
	return RecordResult{Payment: *existing, Replayed: true}, true, nil
}

// whyNotPayable explains a MarkPaid that matched nothing.
func (s *Service) whyNotPayable(ctx context.Context, id primitive.ObjectID) error {
	b, err := s.bookings.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound("booking not found")
	}
	if err != nil {
		return apperr.Store(err)
	}
	if b.PaymentStatus == models.PaymentPaid {
		return apperr.Conflict("booking is already paid")
	}
	return apperr.Conflict("booking is " + string(b.Status) + ", only approved bookings can be paid")
}

// warnOnMismatch logs a payment whose payer or amount differs from the
// booking. The provider has already captured the money, so it is recorded
// anyway and left for an operator to review.
func (s *Service) warnOnMismatch(ctx context.Context, id primitive.ObjectID, in RecordInput) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return
	}
	if b.Amount != in.Amount || b.Email != in.Email {
		s.log.Warn("payment does not match booking",
			zap.String("booking_id", id.Hex()),
			zap.String("booking_email", b.Email),
			zap.String("payment_email", in.Email),
			zap.Int64("booking_amount", b.Amount),
			zap.Int64("payment_amount", in.Amount))
	}
}

// History returns the payer's payments, newest first.
func (s *Service) History(ctx context.Context, email string) ([]models.Payment, error) {
	email = normalize.Email(email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}
	out, err := s.payments.ListByEmail(ctx, email)
	if err != nil {
		s.log.Error("payment history failed", zap.String("email", email), zap.Error(err))
		return nil, apperr.Store(err)
	}
	return out, nil
}
