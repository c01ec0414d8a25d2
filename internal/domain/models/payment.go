// internal/domain/models/payment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment is a settled charge against a booking. Payments are write-once:
// nothing updates or deletes them, including booking deletion.
//
// booking_id and transaction_id are each unique (see indexes).
type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	BookingID     primitive.ObjectID `bson:"booking_id" json:"booking_id"`
	Email         string             `bson:"email" json:"email"`
	Amount        int64              `bson:"amount" json:"amount"`
	TransactionID string             `bson:"transaction_id" json:"transaction_id"`
	PaymentDate   time.Time          `bson:"payment_date" json:"payment_date"`
}
