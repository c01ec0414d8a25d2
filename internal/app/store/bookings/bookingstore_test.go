package bookingstore_test

import (
	"errors"
	"testing"
	"time"

	bookingstore "github.com/dalemusser/clubhub/internal/app/store/bookings"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/dalemusser/clubhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Create_Defaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := bookingstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b, err := store.Create(ctx, models.Booking{
		Email:  "ana@example.com",
		Amount: 2500,
		BookingDetails: models.BookingDetails{
			CourtName: "Center",
			Slots:     []string{"10:00-11:00"},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.ID.IsZero() {
		t.Error("expected ID to be assigned")
	}

	got, err := store.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.BookingPending || got.PaymentStatus != models.PaymentUnpaid {
		t.Errorf("status = %s/%s, want pending/unpaid", got.Status, got.PaymentStatus)
	}
	if got.CourtName != "Center" || len(got.Slots) != 1 {
		t.Errorf("details not persisted: %+v", got.BookingDetails)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := bookingstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}

func TestStore_SetStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := bookingstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b := fixtures.CreateBooking(ctx, "ana@example.com", 2500, models.BookingPending, models.PaymentUnpaid)
	now := time.Now().UTC()

	res, err := store.SetStatus(ctx, b.ID, models.BookingPending, models.BookingApproved, now)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if res.Matched != 1 || res.Modified != 1 {
		t.Errorf("result = %+v, want 1/1", res)
	}

	got, _ := store.GetByID(ctx, b.ID)
	if got.Status != models.BookingApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
	if got.DecidedAt == nil {
		t.Error("expected decided_at to be set")
	}

	// The second writer loses: the booking is no longer pending.
	res, err = store.SetStatus(ctx, b.ID, models.BookingPending, models.BookingRejected, now)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if res.Matched != 0 {
		t.Errorf("expected no match on stale status, got %+v", res)
	}
}

func TestStore_SetStatus_RevertToPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := bookingstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b := fixtures.CreateBooking(ctx, "ana@example.com", 2500, models.BookingApproved, models.PaymentUnpaid)

	res, err := store.SetStatus(ctx, b.ID, models.BookingApproved, models.BookingPending, time.Now().UTC())
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if res.Modified != 1 {
		t.Fatalf("expected revert to modify, got %+v", res)
	}
	got, _ := store.GetByID(ctx, b.ID)
	if got.Status != models.BookingPending || got.DecidedAt != nil {
		t.Errorf("revert left status=%s decided_at=%v", got.Status, got.DecidedAt)
	}
}

func TestStore_MarkPaid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := bookingstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	approved := fixtures.CreateBooking(ctx, "ana@example.com", 2500, models.BookingApproved, models.PaymentUnpaid)
	pending := fixtures.CreateBooking(ctx, "ana@example.com", 2500, models.BookingPending, models.PaymentUnpaid)
	now := time.Now().UTC()

	res, err := store.MarkPaid(ctx, approved.ID, now)
	if err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if res.Matched != 1 || res.Modified != 1 {
		t.Errorf("result = %+v, want 1/1", res)
	}

	// Already paid: no second match.
	res, _ = store.MarkPaid(ctx, approved.ID, now)
	if res.Matched != 0 {
		t.Errorf("expected paid booking not to match again, got %+v", res)
	}

	// Pending bookings cannot be paid.
	res, _ = store.MarkPaid(ctx, pending.ID, now)
	if res.Matched != 0 {
		t.Errorf("expected pending booking not to match, got %+v", res)
	}

	n, err := store.MarkUnpaid(ctx, approved.ID)
	if err != nil {
		t.Fatalf("MarkUnpaid failed: %v", err)
	}
	if n != 1 {
		t.Errorf("MarkUnpaid modified %d, want 1", n)
	}
	got, _ := store.GetByID(ctx, approved.ID)
	if got.PaymentStatus != models.PaymentUnpaid || got.PaymentDate != nil {
		t.Errorf("MarkUnpaid left %s payment_date=%v", got.PaymentStatus, got.PaymentDate)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := bookingstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b := fixtures.CreateBooking(ctx, "ana@example.com", 2500, models.BookingPending, models.PaymentUnpaid)

	n, err := store.Delete(ctx, b.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v; want 1, nil", n, err)
	}
	n, err = store.Delete(ctx, b.ID)
	if err != nil || n != 0 {
		t.Errorf("second Delete = %d, %v; want 0, nil", n, err)
	}
}

func TestStore_Queries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := bookingstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateBooking(ctx, "ana@example.com", 1000, models.BookingPending, models.PaymentUnpaid)
	fixtures.CreateBooking(ctx, "bo@example.com", 1000, models.BookingPending, models.PaymentUnpaid)
	fixtures.CreateBooking(ctx, "ana@example.com", 1000, models.BookingApproved, models.PaymentUnpaid)
	fixtures.CreateBooking(ctx, "ana@example.com", 1000, models.BookingRejected, models.PaymentUnpaid)

	older := fixtures.CreateBooking(ctx, "ana@example.com", 1000, models.BookingApproved, models.PaymentUnpaid)
	newer := fixtures.CreateBooking(ctx, "bo@example.com", 1000, models.BookingApproved, models.PaymentUnpaid)
	t0 := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := store.MarkPaid(ctx, older.ID, t0); err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	if _, err := store.MarkPaid(ctx, newer.ID, t0.Add(time.Hour)); err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}

	tests := []struct {
		name string
		list func() ([]models.Booking, error)
		want int
	}{
		{"pending all", func() ([]models.Booking, error) { return store.ListPending(ctx, "") }, 2},
		{"pending ana", func() ([]models.Booking, error) { return store.ListPending(ctx, "ana@example.com") }, 1},
		{"pending nobody", func() ([]models.Booking, error) { return store.ListPending(ctx, "zed@example.com") }, 0},
		{"approved unpaid ana", func() ([]models.Booking, error) { return store.ListApprovedUnpaid(ctx, "ana@example.com") }, 1},
		{"paid all", func() ([]models.Booking, error) { return store.ListPaid(ctx, "") }, 2},
		{"paid bo", func() ([]models.Booking, error) { return store.ListPaid(ctx, "bo@example.com") }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.list()
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if got == nil {
				t.Fatal("expected empty slice, got nil")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	paid, _ := store.ListPaid(ctx, "")
	if paid[0].ID != newer.ID {
		t.Errorf("ListPaid should sort by payment_date desc, got first %s", paid[0].ID.Hex())
	}

	stale, err := store.ListPaidBefore(ctx, t0.Add(30*time.Minute), 10)
	if err != nil {
		t.Fatalf("ListPaidBefore failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != older.ID {
		t.Errorf("ListPaidBefore = %v, want only the older booking", stale)
	}
}
