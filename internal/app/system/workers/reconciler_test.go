package workers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/clubhub/internal/app/system/workers"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/dalemusser/clubhub/internal/testutil/memstore"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func paidAt(at time.Time) models.Booking {
	return models.Booking{
		Email:         "ana@example.com",
		Amount:        2500,
		Status:        models.BookingApproved,
		PaymentStatus: models.PaymentPaid,
		PaymentDate:   &at,
	}
}

func TestReconcile_RevertsOrphanedPaidBooking(t *testing.T) {
	bookings := memstore.NewBookings()
	payments := memstore.NewPayments()
	w := workers.NewReconciler(bookings, payments, nil, zap.NewNop(), workers.ReconcilerConfig{Grace: time.Minute})

	now := time.Now().UTC()
	orphan := bookings.Put(paidAt(now.Add(-10 * time.Minute)))
	fresh := bookings.Put(paidAt(now)) // inside the grace period
	settled := bookings.Put(paidAt(now.Add(-10 * time.Minute)))
	payments.Put(models.Payment{BookingID: settled.ID, Email: settled.Email, TransactionID: "pi_1", PaymentDate: *settled.PaymentDate})

	rep := w.Reconcile(context.Background())
	if rep.Reverted != 1 {
		t.Errorf("Reverted = %d, want 1", rep.Reverted)
	}

	if b, _ := bookings.Get(orphan.ID); b.PaymentStatus != models.PaymentUnpaid {
		t.Error("orphaned booking should be unpaid")
	}
	if b, _ := bookings.Get(fresh.ID); b.PaymentStatus != models.PaymentPaid {
		t.Error("booking inside grace period must be left alone")
	}
	if b, _ := bookings.Get(settled.ID); b.PaymentStatus != models.PaymentPaid {
		t.Error("booking with a payment must stay paid")
	}
}

func TestReconcile_RepairsUnpaidBookingWithPayment(t *testing.T) {
	bookings := memstore.NewBookings()
	payments := memstore.NewPayments()
	w := workers.NewReconciler(bookings, payments, nil, zap.NewNop(), workers.ReconcilerConfig{})

	b := bookings.Put(models.Booking{Email: "ana@example.com", Amount: 2500, Status: models.BookingApproved, PaymentStatus: models.PaymentUnpaid})
	at := time.Now().UTC().Add(-time.Hour)
	payments.Put(models.Payment{BookingID: b.ID, Email: b.Email, TransactionID: "pi_1", PaymentDate: at})
	// A payment for a deleted booking is ignored.
	payments.Put(models.Payment{BookingID: primitive.NewObjectID(), TransactionID: "pi_2", PaymentDate: at})

	rep := w.Reconcile(context.Background())
	if rep.Repaired != 1 {
		t.Errorf("Repaired = %d, want 1", rep.Repaired)
	}
	got, _ := bookings.Get(b.ID)
	if got.PaymentStatus != models.PaymentPaid || got.PaymentDate == nil || !got.PaymentDate.Equal(at) {
		t.Errorf("booking = %s payment_date=%v, want paid at %v", got.PaymentStatus, got.PaymentDate, at)
	}

	// A second pass has nothing left to do.
	if rep := w.Reconcile(context.Background()); rep != (workers.Report{}) {
		t.Errorf("second pass = %+v, want empty", rep)
	}
}

func TestReconcile_StoreErrorsAreSkipped(t *testing.T) {
	bookings := memstore.NewBookings()
	payments := memstore.NewPayments()
	w := workers.NewReconciler(bookings, payments, nil, zap.NewNop(), workers.ReconcilerConfig{})

	bookings.Put(paidAt(time.Now().UTC().Add(-time.Hour)))
	payments.Fail("ExistsForBooking", errors.New("timeout"))

	if rep := w.Reconcile(context.Background()); rep.Reverted != 0 {
		t.Errorf("Reverted = %d, want 0 when the ledger cannot be read", rep.Reverted)
	}
}

func TestReconciler_StartStop(t *testing.T) {
	w := workers.NewReconciler(memstore.NewBookings(), memstore.NewPayments(), nil, zap.NewNop(),
		workers.ReconcilerConfig{Interval: 10 * time.Millisecond})
	w.Start()
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}
