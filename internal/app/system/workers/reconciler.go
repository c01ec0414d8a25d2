// internal/app/system/workers/reconciler.go
package workers

import (
	"context"
	"sync"
	"time"

	bookingstore "github.com/dalemusser/clubhub/internal/app/store/bookings"
	"github.com/dalemusser/clubhub/internal/app/system/auditlog"
	"github.com/dalemusser/clubhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Bookings is what the reconciler reads and repairs.
type Bookings interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	ListPaidBefore(ctx context.Context, before time.Time, limit int64) ([]models.Booking, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, at time.Time) (bookingstore.UpdateResult, error)
	MarkUnpaid(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// Payments is the ledger side of the reconciler.
type Payments interface {
	ExistsForBooking(ctx context.Context, bookingID primitive.ObjectID) (bool, error)
	ListSince(ctx context.Context, since time.Time, limit int64) ([]models.Payment, error)
}

// ReconcilerConfig tunes a Reconciler. Zero values take the defaults.
type ReconcilerConfig struct {
	Interval  time.Duration // how often to run (default 1m)
	Grace     time.Duration // how old a paid booking must be before it is checked (default 5m)
	Lookback  time.Duration // how far back payments are scanned (default 24h)
	BatchSize int64         // max documents per pass (default 200)
}

// Report summarizes one pass.
type Report struct {
	Reverted int // bookings marked paid with no payment, set back to unpaid
	Repaired int // approved unpaid bookings whose payment exists, set to paid
}

// Reconciler repairs the two states an interrupted payment recording can leave
// behind when the deployment has no multi-document transactions.
type Reconciler struct {
	bookings Bookings
	payments Payments
	audit    *auditlog.Logger
	log      *zap.Logger
	cfg      ReconcilerConfig
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewReconciler creates a reconciler. audit may be nil.
func NewReconciler(bookings Bookings, payments Payments, audit *auditlog.Logger, logger *zap.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Minute
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Reconciler{
		bookings: bookings,
		payments: payments,
		audit:    audit,
		log:      logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *Reconciler) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("payment reconciler started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("grace", w.cfg.Grace))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Reconciler) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("payment reconciler stopped")
}

func (w *Reconciler) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			w.Reconcile(ctx)
			cancel()
		}
	}
}

// Reconcile runs one pass. Per-document failures are logged and retried on
// the next pass.
func (w *Reconciler) Reconcile(ctx context.Context) Report {
	var rep Report
	now := w.now()

	stale, err := w.bookings.ListPaidBefore(ctx, now.Add(-w.cfg.Grace), w.cfg.BatchSize)
	if err != nil {
		w.log.Error("reconciler: list paid bookings failed", zap.Error(err))
	}
	for _, b := range stale {
		ok, err := w.payments.ExistsForBooking(ctx, b.ID)
		if err != nil {
			w.log.Error("reconciler: payment lookup failed", zap.String("booking_id", b.ID.Hex()), zap.Error(err))
			continue
		}
		if ok {
			continue
		}
		n, err := w.bookings.MarkUnpaid(ctx, b.ID)
		if err != nil {
			w.log.Error("reconciler: revert booking failed", zap.String("booking_id", b.ID.Hex()), zap.Error(err))
			continue
		}
		if n > 0 {
			rep.Reverted++
			w.audit.PaymentReverted(ctx, b)
			w.log.Warn("reconciler: reverted paid booking with no payment", zap.String("booking_id", b.ID.Hex()))
		}
	}

	payments, err := w.payments.ListSince(ctx, now.Add(-w.cfg.Lookback), w.cfg.BatchSize)
	if err != nil {
		w.log.Error("reconciler: list payments failed", zap.Error(err))
	}
	for _, p := range payments {
		b, err := w.bookings.GetByID(ctx, p.BookingID)
		if err != nil {
			// Deleted bookings keep their payment; nothing to repair.
			continue
		}
		if b.Status != models.BookingApproved || b.PaymentStatus != models.PaymentUnpaid {
			continue
		}
		res, err := w.bookings.MarkPaid(ctx, p.BookingID, p.PaymentDate)
		if err != nil {
			w.log.Error("reconciler: mark paid failed", zap.String("booking_id", p.BookingID.Hex()), zap.Error(err))
			continue
		}
		if res.Modified > 0 {
			rep.Repaired++
			w.audit.PaymentReconciled(ctx, p)
			w.log.Warn("reconciler: marked booking paid from ledger",
				zap.String("booking_id", p.BookingID.Hex()),
				zap.String("transaction_id", p.TransactionID))
		}
	}

	if rep.Reverted > 0 || rep.Repaired > 0 {
		w.log.Info("reconciler pass complete", zap.Int("reverted", rep.Reverted), zap.Int("repaired", rep.Repaired))
	}
	return rep
}
