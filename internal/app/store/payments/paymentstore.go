// internal/app/store/payments/paymentstore.go
package paymentstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/clubhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate is returned when a payment for the booking or with the same
// transaction id already exists.
var ErrDuplicate = errors.New("payment already recorded")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("payments")}
}

// Insert appends a payment to the ledger. ID and PaymentDate are assigned when
// zero.
func (s *Store) Insert(ctx context.Context, p models.Payment) (models.Payment, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Payment{}, ErrDuplicate
		}
		return models.Payment{}, err
	}
	return p, nil
}

// GetByTransactionID returns mongo.ErrNoDocuments if no payment carries txID.
func (s *Store) GetByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	var p models.Payment
	if err := s.c.FindOne(ctx, bson.M{"transaction_id": txID}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ExistsForBooking reports whether a payment has been recorded for the booking.
func (s *Store) ExistsForBooking(ctx context.Context, bookingID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"booking_id": bookingID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByEmail returns the payer's payments, newest first.
func (s *Store) ListByEmail(ctx context.Context, email string) ([]models.Payment, error) {
	return s.find(ctx, bson.M{"email": email},
		options.Find().SetSort(bson.D{{Key: "payment_date", Value: -1}, {Key: "_id", Value: -1}}))
}

// ListSince returns up to limit payments recorded at or after since, oldest first.
func (s *Store) ListSince(ctx context.Context, since time.Time, limit int64) ([]models.Payment, error) {
	return s.find(ctx, bson.M{"payment_date": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "payment_date", Value: 1}}).SetLimit(limit))
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Payment, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Payment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
