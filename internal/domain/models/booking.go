// internal/domain/models/booking.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingStatus is the approval state of a booking.
type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingApproved BookingStatus = "approved"
	BookingRejected BookingStatus = "rejected"
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingApproved, BookingRejected:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is allowed from s.
func (s BookingStatus) Terminal() bool {
	return s == BookingApproved || s == BookingRejected
}

// bookingTransitions lists the allowed next statuses for each current status.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending: {BookingApproved, BookingRejected},
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the settlement state of a booking.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	return s == PaymentUnpaid || s == PaymentPaid
}

// Booking is a court reservation request carrying an approval and a payment
// lifecycle. Amount is in minor currency units (cents).
//
// Invariants kept by the booking and payment services:
//   - PaymentStatus == paid implies Status == approved
//   - Status never leaves approved or rejected
type Booking struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email         string             `bson:"email" json:"email"`
	Amount        int64              `bson:"amount" json:"amount"`
	Status        BookingStatus      `bson:"status" json:"status"`
	PaymentStatus PaymentStatus      `bson:"payment_status" json:"payment_status"`

	BookingDetails `bson:",inline"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	DecidedAt   *time.Time `bson:"decided_at,omitempty" json:"decided_at,omitempty"`
	PaymentDate *time.Time `bson:"payment_date,omitempty" json:"payment_date,omitempty"`
}

// BookingDetails holds the descriptive, lifecycle-neutral part of a booking.
type BookingDetails struct {
	CourtID   *primitive.ObjectID `bson:"court_id,omitempty" json:"court_id,omitempty"`
	CourtName string              `bson:"court_name,omitempty" json:"court_name,omitempty"`
	CourtType string              `bson:"court_type,omitempty" json:"court_type,omitempty"`
	Date      string              `bson:"date,omitempty" json:"date,omitempty"` // YYYY-MM-DD
	Slots     []string            `bson:"slots,omitempty" json:"slots,omitempty"`
	Notes     string              `bson:"notes,omitempty" json:"notes,omitempty"` // sanitized HTML
}
