// Package memstore holds in-memory stand-ins for the Mongo stores. They keep
// the same filter semantics (compare-and-set, unique keys, sort order, and
// mongo.ErrNoDocuments) so service tests run without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingstore "github.com/dalemusser/clubhub/internal/app/store/bookings"
	paymentstore "github.com/dalemusser/clubhub/internal/app/store/payments"
	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// failures maps an operation name to the error it should return.
type failures struct {
	mu sync.Mutex
	m  map[string]error
}

// Fail makes every later call to op return err. A nil err clears it.
func (f *failures) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.m == nil {
		f.m = map[string]error{}
	}
	if err == nil {
		delete(f.m, op)
		return
	}
	f.m[op] = err
}

func (f *failures) err(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m[op]
}

/* -------------------------------- bookings -------------------------------- */

type Bookings struct {
	failures
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Booking

	// BeforeSetStatus, when set, runs before SetStatus applies its filter.
	// Tests use it to simulate a concurrent writer.
	BeforeSetStatus func(id primitive.ObjectID)
}

func NewBookings() *Bookings {
	return &Bookings{docs: map[primitive.ObjectID]models.Booking{}}
}

// Put stores b as-is, assigning an ID if missing.
func (s *Bookings) Put(b models.Booking) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	s.docs[b.ID] = b
	return b
}

// Get returns the stored booking without going through failure injection.
func (s *Bookings) Get(id primitive.ObjectID) (models.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.docs[id]
	return b, ok
}

func (s *Bookings) Create(_ context.Context, b models.Booking) (models.Booking, error) {
	if err := s.err("Create"); err != nil {
		return models.Booking{}, err
	}
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
	return s.Put(b), nil
}

func (s *Bookings) GetByID(_ context.Context, id primitive.ObjectID) (*models.Booking, error) {
	if err := s.err("GetByID"); err != nil {
		return nil, err
	}
	b, ok := s.Get(id)
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &b, nil
}

func (s *Bookings) SetStatus(_ context.Context, id primitive.ObjectID, from, to models.BookingStatus, at time.Time) (bookingstore.UpdateResult, error) {
	if err := s.err("SetStatus"); err != nil {
		return bookingstore.UpdateResult{}, err
	}
	if s.BeforeSetStatus != nil {
		s.BeforeSetStatus(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.docs[id]
	if !ok || b.Status != from || b.PaymentStatus != models.PaymentUnpaid {
		return bookingstore.UpdateResult{}, nil
	}
	b.Status = to
	b.UpdatedAt = at
	if to == models.BookingPending {
		b.DecidedAt = nil
	} else {
		decided := at
		b.DecidedAt = &decided
	}
	s.docs[id] = b
	return bookingstore.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s *Bookings) MarkPaid(_ context.Context, id primitive.ObjectID, at time.Time) (bookingstore.UpdateResult, error) {
	if err := s.err("MarkPaid"); err != nil {
		return bookingstore.UpdateResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.docs[id]
	if !ok || b.Status != models.BookingApproved || b.PaymentStatus != models.PaymentUnpaid {
		return bookingstore.UpdateResult{}, nil
	}
	paid := at
	b.PaymentStatus = models.PaymentPaid
	b.PaymentDate = &paid
	b.UpdatedAt = at
	s.docs[id] = b
	return bookingstore.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s *Bookings) MarkUnpaid(_ context.Context, id primitive.ObjectID) (int64, error) {
	if err := s.err("MarkUnpaid"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.docs[id]
	if !ok || b.PaymentStatus != models.PaymentPaid {
		return 0, nil
	}
	b.PaymentStatus = models.PaymentUnpaid
	b.PaymentDate = nil
	b.UpdatedAt = time.Now().UTC()
	s.docs[id] = b
	return 1, nil
}

func (s *Bookings) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	if err := s.err("Delete"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return 0, nil
	}
	delete(s.docs, id)
	return 1, nil
}

func (s *Bookings) ListPending(_ context.Context, email string) ([]models.Booking, error) {
	if err := s.err("ListPending"); err != nil {
		return nil, err
	}
	out := s.filter(func(b models.Booking) bool {
		return b.Status == models.BookingPending && (email == "" || b.Email == email)
	})
	sortByCreated(out)
	return out, nil
}

func (s *Bookings) ListApprovedUnpaid(_ context.Context, email string) ([]models.Booking, error) {
	if err := s.err("ListApprovedUnpaid"); err != nil {
		return nil, err
	}
	out := s.filter(func(b models.Booking) bool {
		return b.Status == models.BookingApproved && b.PaymentStatus == models.PaymentUnpaid && b.Email == email
	})
	sortByCreated(out)
	return out, nil
}

func (s *Bookings) ListPaid(_ context.Context, email string) ([]models.Booking, error) {
	if err := s.err("ListPaid"); err != nil {
		return nil, err
	}
	out := s.filter(func(b models.Booking) bool {
		return b.PaymentStatus == models.PaymentPaid && (email == "" || b.Email == email)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return paymentDate(out[i]).After(paymentDate(out[j]))
	})
	return out, nil
}

func (s *Bookings) ListPaidBefore(_ context.Context, before time.Time, limit int64) ([]models.Booking, error) {
	if err := s.err("ListPaidBefore"); err != nil {
		return nil, err
	}
	out := s.filter(func(b models.Booking) bool {
		return b.PaymentStatus == models.PaymentPaid && b.PaymentDate != nil && b.PaymentDate.Before(before)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return paymentDate(out[i]).Before(paymentDate(out[j]))
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Bookings) filter(keep func(models.Booking) bool) []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range s.docs {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

func sortByCreated(bs []models.Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].ID.Hex() < bs[j].ID.Hex()
		}
		return bs[i].CreatedAt.Before(bs[j].CreatedAt)
	})
}

func paymentDate(b models.Booking) time.Time {
	if b.PaymentDate == nil {
		return time.Time{}
	}
	return *b.PaymentDate
}

/* ---------------------------------- users --------------------------------- */

type Users struct {
	failures
	mu   sync.Mutex
	docs map[string]models.User // by email
}

func NewUsers() *Users {
	return &Users{docs: map[string]models.User{}}
}

// Put stores u keyed by its normalized email.
func (s *Users) Put(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = normalize.Email(u.Email)
	s.docs[u.Email] = u
	return u
}

// Get returns the stored user without failure injection.
func (s *Users) Get(email string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.docs[normalize.Email(email)]
	return u, ok
}

func (s *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if err := s.err("GetByEmail"); err != nil {
		return nil, err
	}
	u, ok := s.Get(email)
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &u, nil
}

func (s *Users) Create(_ context.Context, u models.User) (models.User, bool, error) {
	if err := s.err("Create"); err != nil {
		return models.User{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = normalize.Email(u.Email)
	u.Name = normalize.Name(u.Name)
	if _, dup := s.docs[u.Email]; dup {
		return models.User{}, false, nil
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.docs[u.Email] = u
	return u, true, nil
}

func (s *Users) ListByRole(_ context.Context, role string) ([]models.User, error) {
	if err := s.err("ListByRole"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.docs {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Users) Promote(_ context.Context, email string, at time.Time) (userstore.PromoteResult, error) {
	if err := s.err("Promote"); err != nil {
		return userstore.PromoteResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email = normalize.Email(email)
	u, ok := s.docs[email]
	if !ok {
		return userstore.PromoteResult{}, nil
	}
	if u.Role != models.RoleUser && u.Role != "" {
		return userstore.PromoteResult{Matched: true}, nil
	}
	joined := at
	u.Role = models.RoleMember
	u.JoinedAt = &joined
	s.docs[email] = u
	return userstore.PromoteResult{Matched: true, Promoted: true}, nil
}

func (s *Users) Demote(_ context.Context, email string, at time.Time) (int64, error) {
	if err := s.err("Demote"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email = normalize.Email(email)
	u, ok := s.docs[email]
	if !ok || u.Role != models.RoleMember || u.JoinedAt == nil || !u.JoinedAt.Equal(at) {
		return 0, nil
	}
	u.Role = models.RoleUser
	u.JoinedAt = nil
	s.docs[email] = u
	return 1, nil
}

/* -------------------------------- payments -------------------------------- */

type Payments struct {
	failures
	mu   sync.Mutex
	docs []models.Payment
}

func NewPayments() *Payments {
	return &Payments{}
}

// Put appends p without uniqueness checks.
func (s *Payments) Put(p models.Payment) models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.docs = append(s.docs, p)
	return p
}

// All returns a copy of every stored payment.
func (s *Payments) All() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Payment(nil), s.docs...)
}

func (s *Payments) Insert(_ context.Context, p models.Payment) (models.Payment, error) {
	if err := s.err("Insert"); err != nil {
		return models.Payment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.docs {
		if ex.BookingID == p.BookingID || ex.TransactionID == p.TransactionID {
			return models.Payment{}, paymentstore.ErrDuplicate
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}
	s.docs = append(s.docs, p)
	return p, nil
}

func (s *Payments) GetByTransactionID(_ context.Context, txID string) (*models.Payment, error) {
	if err := s.err("GetByTransactionID"); err != nil {
		return nil, err
	}
	return s.first(func(p models.Payment) bool { return p.TransactionID == txID })
}

func (s *Payments) ExistsForBooking(ctx context.Context, bookingID primitive.ObjectID) (bool, error) {
	if err := s.err("ExistsForBooking"); err != nil {
		return false, err
	}
	_, err := s.first(func(p models.Payment) bool { return p.BookingID == bookingID })
	return err == nil, nil
}

func (s *Payments) ListByEmail(_ context.Context, email string) ([]models.Payment, error) {
	if err := s.err("ListByEmail"); err != nil {
		return nil, err
	}
	out := s.filter(func(p models.Payment) bool { return p.Email == email })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return out, nil
}

func (s *Payments) ListSince(_ context.Context, since time.Time, limit int64) ([]models.Payment, error) {
	if err := s.err("ListSince"); err != nil {
		return nil, err
	}
	out := s.filter(func(p models.Payment) bool { return !p.PaymentDate.Before(since) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.Before(out[j].PaymentDate) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Payments) first(match func(models.Payment) bool) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.docs {
		if match(p) {
			p := p
			return &p, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (s *Payments) filter(keep func(models.Payment) bool) []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Payment{}
	for _, p := range s.docs {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
