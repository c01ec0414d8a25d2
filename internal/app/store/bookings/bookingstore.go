// internal/app/store/bookings/bookingstore.go
package bookingstore

import (
	"context"
	"time"

	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the booking collection name.
const Collection = "booking"

// UpdateResult reports how many documents a conditional update matched and changed.
type UpdateResult struct {
	Matched  int64 `json:"matchedCount"`
	Modified int64 `json:"modifiedCount"`
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Create inserts a new booking. Status and payment status default to
// pending/unpaid; callers are expected to have validated the input.
func (s *Store) Create(ctx context.Context, b models.Booking) (models.Booking, error) {
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID()
	if b.Status == "" {
		b.Status = models.BookingPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = models.PaymentUnpaid
	}
	b.CreatedAt = now
	b.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, b); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

// GetByID loads a booking. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	var b models.Booking
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SetStatus moves a booking from status `from` to `to`, but only while it is
// still in `from` and unpaid. It is the compare-and-set every transition goes
// through; a zero Matched count means another writer got there first or the
// booking is gone.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.BookingStatus, at time.Time) (UpdateResult, error) {
	filter := bson.M{
		"_id":            id,
		"status":         from,
		"payment_status": models.PaymentUnpaid,
	}
	update := bson.M{"$set": bson.M{
		"status":     to,
		"decided_at": at,
		"updated_at": at,
	}}
	if to == models.BookingPending {
		update = bson.M{
			"$set":   bson.M{"status": to, "updated_at": at},
			"$unset": bson.M{"decided_at": ""},
		}
	}

	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// MarkPaid flips payment_status to paid for an approved, unpaid booking.
func (s *Store) MarkPaid(ctx context.Context, id primitive.ObjectID, at time.Time) (UpdateResult, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":            id,
			"status":         models.BookingApproved,
			"payment_status": models.PaymentUnpaid,
		},
		bson.M{"$set": bson.M{
			"payment_status": models.PaymentPaid,
			"payment_date":   at,
			"updated_at":     at,
		}},
	)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// MarkUnpaid reverts a paid booking. Used to undo MarkPaid when the payment
// record could not be written.
func (s *Store) MarkUnpaid(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "payment_status": models.PaymentPaid},
		bson.M{
			"$set":   bson.M{"payment_status": models.PaymentUnpaid, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"payment_date": ""},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a booking. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListPending returns pending bookings, oldest first. An empty email lists all owners.
func (s *Store) ListPending(ctx context.Context, email string) ([]models.Booking, error) {
	filter := bson.M{"status": models.BookingPending}
	if email != "" {
		filter["email"] = email
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

// ListApprovedUnpaid returns an owner's approved bookings still awaiting payment.
func (s *Store) ListApprovedUnpaid(ctx context.Context, email string) ([]models.Booking, error) {
	filter := bson.M{
		"status":         models.BookingApproved,
		"payment_status": models.PaymentUnpaid,
		"email":          email,
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
}

// ListPaid returns paid bookings, most recent payment first. An empty email
// lists all owners.
func (s *Store) ListPaid(ctx context.Context, email string) ([]models.Booking, error) {
	filter := bson.M{"payment_status": models.PaymentPaid}
	if email != "" {
		filter["email"] = email
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "payment_date", Value: -1}, {Key: "_id", Value: -1}}))
}

// ListPaidBefore returns up to limit paid bookings whose payment_date is older
// than before. The reconciler uses it to find bookings left paid by an
// interrupted payment recording.
func (s *Store) ListPaidBefore(ctx context.Context, before time.Time, limit int64) ([]models.Booking, error) {
	filter := bson.M{
		"payment_status": models.PaymentPaid,
		"payment_date":   bson.M{"$lt": before},
	}
	return s.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "payment_date", Value: 1}}).
		SetLimit(limit))
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Booking, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Booking{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
