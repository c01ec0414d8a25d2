package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/clubhub/internal/app/service/payment"
	"github.com/dalemusser/clubhub/internal/app/system/apperr"
	"github.com/dalemusser/clubhub/internal/app/system/events"
	"github.com/dalemusser/clubhub/internal/app/system/txn"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/dalemusser/clubhub/internal/testutil/memstore"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type env struct {
	svc      *payment.Service
	bookings *memstore.Bookings
	payments *memstore.Payments
	events   *events.Memory
	logs     *observer.ObservedLogs
}

func newEnv(t *testing.T) *env {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)
	e := &env{
		bookings: memstore.NewBookings(),
		payments: memstore.NewPayments(),
		events:   &events.Memory{},
		logs:     logs,
	}
	e.svc = payment.New(e.bookings, e.payments, txn.NewSaga(log), e.events, nil, log)
	return e
}

func (e *env) approved(email string, amount int64) models.Booking {
	return e.bookings.Put(models.Booking{
		Email:         email,
		Amount:        amount,
		Status:        models.BookingApproved,
		PaymentStatus: models.PaymentUnpaid,
	})
}

func input(b models.Booking, txID string) payment.RecordInput {
	return payment.RecordInput{
		BookingID:     b.ID.Hex(),
		Email:         b.Email,
		Amount:        b.Amount,
		TransactionID: txID,
	}
}

func TestRecord(t *testing.T) {
	e := newEnv(t)
	b := e.approved("ana@example.com", 2500)

	res, err := e.svc.Record(context.Background(), input(b, "pi_1"))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if res.Replayed {
		t.Error("first recording should not be a replay")
	}
	if res.BookingUpdate.Matched != 1 || res.BookingUpdate.Modified != 1 {
		t.Errorf("BookingUpdate = %+v", res.BookingUpdate)
	}
	if res.Payment.ID.IsZero() || res.Payment.PaymentDate.IsZero() {
		t.Errorf("payment = %+v", res.Payment)
	}

	stored, _ := e.bookings.Get(b.ID)
	if stored.PaymentStatus != models.PaymentPaid || stored.PaymentDate == nil {
		t.Errorf("booking = %s payment_date=%v", stored.PaymentStatus, stored.PaymentDate)
	}
	if !stored.PaymentDate.Equal(res.Payment.PaymentDate) {
		t.Error("booking and payment should carry the same payment date")
	}
	if len(e.payments.All()) != 1 {
		t.Errorf("payments = %d, want 1", len(e.payments.All()))
	}
	if sent := e.events.Sent(); len(sent) != 1 || sent[0].Type != events.PaymentRecorded {
		t.Errorf("events = %+v", sent)
	}
}

func TestRecord_ReplaySameBooking(t *testing.T) {
	e := newEnv(t)
	b := e.approved("ana@example.com", 2500)
	ctx := context.Background()

	first, err := e.svc.Record(ctx, input(b, "pi_1"))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	second, err := e.svc.Record(ctx, input(b, "pi_1"))
	if err != nil {
		t.Fatalf("replayed Record failed: %v", err)
	}
	if !second.Replayed || second.Payment.ID != first.Payment.ID {
		t.Errorf("replay = %+v, want original payment with Replayed", second)
	}
	if second.BookingUpdate.Modified != 0 {
		t.Error("replay must not write")
	}
	if len(e.payments.All()) != 1 {
		t.Errorf("payments = %d, want 1", len(e.payments.All()))
	}
	if len(e.events.Sent()) != 1 {
		t.Error("replay must not publish again")
	}
}

func TestRecord_TransactionUsedByAnotherBooking(t *testing.T) {
	e := newEnv(t)
	b1 := e.approved("ana@example.com", 2500)
	b2 := e.approved("ana@example.com", 2500)
	ctx := context.Background()

	if _, err := e.svc.Record(ctx, input(b1, "pi_1")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	_, err := e.svc.Record(ctx, input(b2, "pi_1"))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, _ := e.bookings.Get(b2.ID)
	if stored.PaymentStatus != models.PaymentUnpaid {
		t.Error("second booking must stay unpaid")
	}
}

func TestRecord_BookingNotPayable(t *testing.T) {
	tests := []struct {
		name     string
		status   models.BookingStatus
		pay      models.PaymentStatus
		wantKind apperr.Kind
	}{
		{"pending", models.BookingPending, models.PaymentUnpaid, apperr.KindConflict},
		{"rejected", models.BookingRejected, models.PaymentUnpaid, apperr.KindConflict},
		{"already paid", models.BookingApproved, models.PaymentPaid, apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			b := e.bookings.Put(models.Booking{Email: "ana@example.com", Amount: 100, Status: tt.status, PaymentStatus: tt.pay})

			_, err := e.svc.Record(context.Background(), input(b, "pi_new"))
			if !apperr.Is(err, tt.wantKind) {
				t.Errorf("expected %v, got %v", tt.wantKind, err)
			}
			if len(e.payments.All()) != 0 {
				t.Error("no payment should be written")
			}
		})
	}
}

func TestRecord_BookingMissing(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Record(context.Background(), payment.RecordInput{
		BookingID:     primitive.NewObjectID().Hex(),
		Email:         "ana@example.com",
		Amount:        100,
		TransactionID: "pi_1",
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRecord_Validation(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	tests := []struct {
		name string
		in   payment.RecordInput
	}{
		{"missing booking", payment.RecordInput{Email: "a@example.com", Amount: 1, TransactionID: "pi"}},
		{"bad booking id", payment.RecordInput{BookingID: "123", Email: "a@example.com", Amount: 1, TransactionID: "pi"}},
		{"missing email", payment.RecordInput{BookingID: id, Amount: 1, TransactionID: "pi"}},
		{"zero amount", payment.RecordInput{BookingID: id, Email: "a@example.com", TransactionID: "pi"}},
		{"negative amount", payment.RecordInput{BookingID: id, Email: "a@example.com", Amount: -1, TransactionID: "pi"}},
		{"blank transaction", payment.RecordInput{BookingID: id, Email: "a@example.com", Amount: 1, TransactionID: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.svc.Record(context.Background(), tt.in)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRecord_InsertFailureRevertsBooking(t *testing.T) {
	e := newEnv(t)
	b := e.approved("ana@example.com", 2500)
	e.payments.Fail("Insert", errors.New("write concern timeout"))

	_, err := e.svc.Record(context.Background(), input(b, "pi_1"))
	if !apperr.Is(err, apperr.KindStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	stored, _ := e.bookings.Get(b.ID)
	if stored.PaymentStatus != models.PaymentUnpaid || stored.PaymentDate != nil {
		t.Errorf("booking not reverted: %s payment_date=%v", stored.PaymentStatus, stored.PaymentDate)
	}
	if len(e.events.Sent()) != 0 {
		t.Error("failed recording must not publish")
	}
}

func TestRecord_DuplicateBookingPayment(t *testing.T) {
	e := newEnv(t)
	b := e.approved("ana@example.com", 2500)
	// A payment row exists for the booking but the booking itself was left
	// unpaid, so MarkPaid matches and the insert hits the unique index.
	e.payments.Put(models.Payment{BookingID: b.ID, Email: b.Email, Amount: b.Amount, TransactionID: "pi_old", PaymentDate: time.Now().UTC()})

	_, err := e.svc.Record(context.Background(), input(b, "pi_new"))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, _ := e.bookings.Get(b.ID)
	if stored.PaymentStatus != models.PaymentUnpaid {
		t.Error("booking should be reverted to unpaid")
	}
}

func TestRecord_MismatchIsLogged(t *testing.T) {
	e := newEnv(t)
	b := e.approved("ana@example.com", 2500)
	in := input(b, "pi_1")
	in.Amount = 1000

	if _, err := e.svc.Record(context.Background(), in); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if e.logs.FilterMessage("payment does not match booking").Len() != 1 {
		t.Error("expected mismatch warning")
	}
}

func TestRecord_LookupStoreFailure(t *testing.T) {
	e := newEnv(t)
	b := e.approved("ana@example.com", 2500)
	e.payments.Fail("GetByTransactionID", errors.New("no primary"))

	_, err := e.svc.Record(context.Background(), input(b, "pi_1"))
	if !apperr.Is(err, apperr.KindStore) {
		t.Errorf("expected store error, got %v", err)
	}
	if stored, _ := e.bookings.Get(b.ID); stored.PaymentStatus != models.PaymentUnpaid {
		t.Error("booking must not be touched")
	}
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()
	e.payments.Put(models.Payment{BookingID: primitive.NewObjectID(), Email: "ana@example.com", TransactionID: "pi_old", PaymentDate: now.Add(-time.Hour)})
	newest := e.payments.Put(models.Payment{BookingID: primitive.NewObjectID(), Email: "ana@example.com", TransactionID: "pi_new", PaymentDate: now})
	e.payments.Put(models.Payment{BookingID: primitive.NewObjectID(), Email: "bo@example.com", TransactionID: "pi_bo", PaymentDate: now})

	got, err := e.svc.History(ctx, " ANA@example.com")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != newest.ID {
		t.Errorf("History = %+v, want 2 newest first", got)
	}

	if _, err := e.svc.History(ctx, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("History without email = %v, want validation", err)
	}
}
