package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/clubhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, email, role string) models.User {
	f.t.Helper()

	u := models.User{
		ID:        primitive.NewObjectID(),
		Name:      "Test " + role,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if role == models.RoleMember {
		joined := u.CreatedAt
		u.JoinedAt = &joined
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateBooking inserts a booking in the given state.
func (f *Fixtures) CreateBooking(ctx context.Context, email string, amount int64, status models.BookingStatus, pay models.PaymentStatus) models.Booking {
	f.t.Helper()

	now := time.Now().UTC()
	b := models.Booking{
		ID:            primitive.NewObjectID(),
		Email:         email,
		Amount:        amount,
		Status:        status,
		PaymentStatus: pay,
		BookingDetails: models.BookingDetails{
			CourtName: "Court 1",
			Date:      "2026-10-20",
			Slots:     []string{"09:00-10:00"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status != models.BookingPending {
		b.DecidedAt = &now
	}
	if pay == models.PaymentPaid {
		b.PaymentDate = &now
	}
	if _, err := f.db.Collection("booking").InsertOne(ctx, b); err != nil {
		f.t.Fatalf("failed to create test booking: %v", err)
	}
	return b
}

// CreatePayment inserts a payment ledger row.
func (f *Fixtures) CreatePayment(ctx context.Context, bookingID primitive.ObjectID, email string, amount int64, txID string, at time.Time) models.Payment {
	f.t.Helper()

	p := models.Payment{
		ID:            primitive.NewObjectID(),
		BookingID:     bookingID,
		Email:         email,
		Amount:        amount,
		TransactionID: txID,
		PaymentDate:   at,
	}
	if _, err := f.db.Collection("payments").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test payment: %v", err)
	}
	return p
}
