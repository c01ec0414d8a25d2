// Package booking owns the booking lifecycle: creation, the approve/reject
// decision (with member promotion on approval), lookup, deletion and the
// listing queries used by the club's screens.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/clubhub/internal/app/service/promotion"
	bookingstore "github.com/dalemusser/clubhub/internal/app/store/bookings"
	"github.com/dalemusser/clubhub/internal/app/system/apperr"
	"github.com/dalemusser/clubhub/internal/app/system/auditlog"
	"github.com/dalemusser/clubhub/internal/app/system/events"
	"github.com/dalemusser/clubhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/clubhub/internal/app/system/inputval"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/app/system/txn"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Bookings is the booking store as the lifecycle uses it.
type Bookings interface {
	Create(ctx context.Context, b models.Booking) (models.Booking, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, from, to models.BookingStatus, at time.Time) (bookingstore.UpdateResult, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	ListPending(ctx context.Context, email string) ([]models.Booking, error)
	ListApprovedUnpaid(ctx context.Context, email string) ([]models.Booking, error)
	ListPaid(ctx context.Context, email string) ([]models.Booking, error)
}

// Promoter upgrades the booking owner inside the approval's unit of work.
type Promoter interface {
	PromoteTx(ctx context.Context, tx *txn.Tx, email string) (promotion.Result, error)
}

// Outcome of a transition.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// CreateInput is a new booking request. Amount is in minor currency units.
type CreateInput struct {
	Email     string   `validate:"required,email" label:"Email"`
	Amount    int64    `validate:"gt=0" label:"Amount"`
	CourtID   string   `validate:"omitempty,objectid" label:"Court"`
	CourtName string   `validate:"max=200" label:"Court name"`
	CourtType string   `validate:"max=100" label:"Court type"`
	Date      string   `validate:"omitempty,isodate" label:"Date"`
	Slots     []string `validate:"max=48,dive,max=50" label:"Slots"`
	Notes     string   `validate:"max=5000" label:"Notes"`
}

// TransitionResult describes what a transition did. Promotion is set only
// when the booking was approved by this call.
type TransitionResult struct {
	ModifiedCount int64             `json:"modifiedCount"`
	Outcome       Outcome           `json:"outcome"`
	Booking       models.Booking    `json:"booking"`
	Promotion     *promotion.Result `json:"promotion,omitempty"`
}

type Service struct {
	bookings Bookings
	promoter Promoter
	runner   txn.Runner
	events   events.Publisher
	audit    *auditlog.Logger
	log      *zap.Logger
	now      func() time.Time
}

// New builds the lifecycle service. pub and audit may be nil.
func New(bookings Bookings, promoter Promoter, runner txn.Runner, pub events.Publisher, audit *auditlog.Logger, logger *zap.Logger) *Service {
	return &Service{
		bookings: bookings,
		promoter: promoter,
		runner:   runner,
		events:   pub,
		audit:    audit,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ParseID turns a hex booking id into an ObjectID.
func ParseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid booking id")
	}
	return id, nil
}

// Create validates and stores a pending, unpaid booking.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Booking, error) {
	in.Email = normalize.Email(in.Email)
	in.CourtName = normalize.Name(in.CourtName)
	in.CourtType = normalize.Name(in.CourtType)
	in.Date = strings.TrimSpace(in.Date)
	in.CourtID = strings.TrimSpace(in.CourtID)

	if r := inputval.Validate(in); r.HasErrors() {
		return models.Booking{}, apperr.Validation(r.First())
	}

	b := models.Booking{
		Email:         in.Email,
		Amount:        in.Amount,
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentUnpaid,
		BookingDetails: models.BookingDetails{
			CourtName: in.CourtName,
			CourtType: in.CourtType,
			Date:      in.Date,
			Slots:     cleanSlots(in.Slots),
			Notes:     htmlsanitize.Sanitize(in.Notes),
		},
	}
	if in.CourtID != "" {
		oid, _ := primitive.ObjectIDFromHex(in.CourtID)
		b.CourtID = &oid
	}

	created, err := s.bookings.Create(ctx, b)
	if err != nil {
		s.log.Error("create booking failed", zap.String("email", in.Email), zap.Error(err))
		return models.Booking{}, apperr.Store(err)
	}
	s.audit.BookingCreated(ctx, created)
	return created, nil
}

func cleanSlots(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Transition moves a booking to (status, paymentStatus). ownerEmail, when
// given, must match the booking's owner. Only pending -> approved|rejected is
// allowed; paid is reached through the payment service, never here.
func (s *Service) Transition(ctx context.Context, rawID string, status models.BookingStatus, paymentStatus models.PaymentStatus, ownerEmail string) (TransitionResult, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return TransitionResult{}, err
	}
	if err := validateTarget(status, paymentStatus); err != nil {
		return TransitionResult{}, err
	}

	cur, err := s.load(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	if ownerEmail = normalize.Email(ownerEmail); ownerEmail != "" && ownerEmail != cur.Email {
		return TransitionResult{}, apperr.Validation("email does not match the booking owner")
	}

	if cur.Status == status && cur.PaymentStatus == paymentStatus {
		return TransitionResult{Outcome: OutcomeUnchanged, Booking: *cur}, nil
	}
	if !cur.Status.CanTransition(status) || cur.PaymentStatus != paymentStatus {
		return TransitionResult{}, apperr.Conflict("booking is already " + string(cur.Status))
	}

	at := s.now()
	var (
		res   bookingstore.UpdateResult
		promo *promotion.Result
	)
	err = s.runner.Run(ctx, func(ctx context.Context, tx *txn.Tx) error {
		promo = nil
		r, err := s.bookings.SetStatus(ctx, id, cur.Status, status, at)
		if err != nil {
			return apperr.Store(err)
		}
		res = r
		if res.Matched == 0 {
			return apperr.Conflict("booking was changed by another request")
		}
		tx.OnRollback(func(ctx context.Context) error {
			_, err := s.bookings.SetStatus(ctx, id, status, cur.Status, at)
			return err
		})

		if status != models.BookingApproved {
			return nil
		}
		p, err := s.promoter.PromoteTx(ctx, tx, cur.Email)
		if err != nil {
			return err
		}
		promo = &p
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Store(err)
		}
		s.log.Warn("booking transition failed",
			zap.String("booking_id", id.Hex()),
			zap.String("to", string(status)),
			zap.Error(err))
		return TransitionResult{}, err
	}

	updated := *cur
	updated.Status = status
	updated.UpdatedAt = at
	decided := at
	updated.DecidedAt = &decided

	s.afterDecision(ctx, updated, cur.Status, promo)
	return TransitionResult{
		ModifiedCount: res.Modified,
		Outcome:       OutcomeUpdated,
		Booking:       updated,
		Promotion:     promo,
	}, nil
}

func validateTarget(status models.BookingStatus, paymentStatus models.PaymentStatus) error {
	switch {
	case status == "":
		return apperr.Validation("status is required")
	case !status.Valid():
		return apperr.Validation("invalid status")
	case paymentStatus == "":
		return apperr.Validation("payment_status is required")
	case !paymentStatus.Valid():
		return apperr.Validation("invalid payment_status")
	case paymentStatus == models.PaymentPaid:
		return apperr.Validation("payment_status can only become paid by recording a payment")
	}
	return nil
}

// afterDecision runs the post-commit side effects. They are best-effort.
func (s *Service) afterDecision(ctx context.Context, b models.Booking, from models.BookingStatus, promo *promotion.Result) {
	s.audit.BookingDecided(ctx, b, from)

	key := events.BookingRejected
	if b.Status == models.BookingApproved {
		key = events.BookingApproved
	}
	promoted := promo != nil && promo.Promoted
	if promoted {
		s.audit.MemberPromoted(ctx, b.ID, b.Email)
	}
	events.Emit(ctx, s.events, s.log, key, events.BookingDecision{
		BookingID: b.ID.Hex(),
		Email:     b.Email,
		Status:    string(b.Status),
		Amount:    b.Amount,
		Promoted:  promoted,
	})
	s.log.Info("booking decided",
		zap.String("booking_id", b.ID.Hex()),
		zap.String("from", string(from)),
		zap.String("to", string(b.Status)),
		zap.Bool("promoted", promoted))
}

// Get returns one booking.
func (s *Service) Get(ctx context.Context, rawID string) (models.Booking, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return models.Booking{}, err
	}
	b, err := s.load(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	return *b, nil
}

func (s *Service) load(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("booking not found")
	}
	if err != nil {
		s.log.Error("load booking failed", zap.String("booking_id", id.Hex()), zap.Error(err))
		return nil, apperr.Store(err)
	}
	return b, nil
}

// Delete removes a booking. Payments recorded for it are kept.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	n, err := s.bookings.Delete(ctx, id)
	if err != nil {
		s.log.Error("delete booking failed", zap.String("booking_id", id.Hex()), zap.Error(err))
		return apperr.Store(err)
	}
	if n == 0 {
		return apperr.NotFound("booking not found")
	}
	s.audit.BookingDeleted(ctx, id)
	return nil
}

// ListPending returns every pending booking.
func (s *Service) ListPending(ctx context.Context) ([]models.Booking, error) {
	return s.list(ctx, "list pending", func() ([]models.Booking, error) {
		return s.bookings.ListPending(ctx, "")
	})
}

// ListPendingByEmail returns the owner's pending bookings.
func (s *Service) ListPendingByEmail(ctx context.Context, email string) ([]models.Booking, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "list pending by email", func() ([]models.Booking, error) {
		return s.bookings.ListPending(ctx, email)
	})
}

// ListApprovedUnpaid returns the owner's approved bookings awaiting payment.
func (s *Service) ListApprovedUnpaid(ctx context.Context, email string) ([]models.Booking, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, "list approved unpaid", func() ([]models.Booking, error) {
		return s.bookings.ListApprovedUnpaid(ctx, email)
	})
}

// ListPaid returns paid bookings, most recent payment first. An empty email
// means all owners.
func (s *Service) ListPaid(ctx context.Context, email string) ([]models.Booking, error) {
	email = normalize.Email(email)
	return s.list(ctx, "list paid", func() ([]models.Booking, error) {
		return s.bookings.ListPaid(ctx, email)
	})
}

func (s *Service) list(ctx context.Context, op string, fn func() ([]models.Booking, error)) ([]models.Booking, error) {
	out, err := fn()
	if err != nil {
		s.log.Error(op+" failed", zap.Error(err))
		return nil, apperr.Store(err)
	}
	return out, nil
}

func requireEmail(email string) (string, error) {
	email = normalize.Email(email)
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	return email, nil
}
