package paymentstore_test

import (
	"errors"
	"testing"
	"time"

	paymentstore "github.com/dalemusser/clubhub/internal/app/store/payments"
	"github.com/dalemusser/clubhub/internal/app/system/indexes"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/dalemusser/clubhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestStore_Insert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := paymentstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	bookingID := primitive.NewObjectID()
	p, err := store.Insert(ctx, models.Payment{
		BookingID:     bookingID,
		Email:         "ana@example.com",
		Amount:        2500,
		TransactionID: "pi_123",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if p.ID.IsZero() || p.PaymentDate.IsZero() {
		t.Errorf("expected ID and PaymentDate to be assigned, got %+v", p)
	}

	got, err := store.GetByTransactionID(ctx, "pi_123")
	if err != nil {
		t.Fatalf("GetByTransactionID failed: %v", err)
	}
	if got.BookingID != bookingID {
		t.Errorf("BookingID = %s, want %s", got.BookingID.Hex(), bookingID.Hex())
	}

	exists, err := store.ExistsForBooking(ctx, bookingID)
	if err != nil || !exists {
		t.Errorf("ExistsForBooking = %v, %v; want true, nil", exists, err)
	}
	exists, _ = store.ExistsForBooking(ctx, primitive.NewObjectID())
	if exists {
		t.Error("ExistsForBooking should be false for an unknown booking")
	}

	_, err = store.GetByTransactionID(ctx, "pi_missing")
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}

func TestStore_Insert_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := paymentstore.New(db)

	bookingID := primitive.NewObjectID()
	if _, err := store.Insert(ctx, models.Payment{BookingID: bookingID, Email: "a@example.com", Amount: 1, TransactionID: "pi_1"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	tests := []struct {
		name string
		p    models.Payment
	}{
		{"same booking", models.Payment{BookingID: bookingID, Email: "a@example.com", Amount: 1, TransactionID: "pi_2"}},
		{"same transaction", models.Payment{BookingID: primitive.NewObjectID(), Email: "a@example.com", Amount: 1, TransactionID: "pi_1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Insert(ctx, tt.p)
			if !errors.Is(err, paymentstore.ErrDuplicate) {
				t.Errorf("expected ErrDuplicate, got %v", err)
			}
		})
	}
}

func TestStore_ListByEmail_NewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := paymentstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	fixtures.CreatePayment(ctx, primitive.NewObjectID(), "ana@example.com", 100, "pi_old", now.Add(-time.Hour))
	newest := fixtures.CreatePayment(ctx, primitive.NewObjectID(), "ana@example.com", 200, "pi_new", now)
	fixtures.CreatePayment(ctx, primitive.NewObjectID(), "bo@example.com", 300, "pi_bo", now)

	got, err := store.ListByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("ListByEmail failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != newest.ID {
		t.Errorf("first = %s, want newest %s", got[0].TransactionID, newest.TransactionID)
	}

	empty, err := store.ListByEmail(ctx, "nobody@example.com")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("ListByEmail(nobody) = %v, %v; want empty slice", empty, err)
	}

	since, err := store.ListSince(ctx, now.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("ListSince len = %d, want 2", len(since))
	}
}
