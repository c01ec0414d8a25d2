// Package txn runs multi-document writes all-or-nothing.
//
// On a replica set or mongos the writes run in a MongoDB transaction. On a
// standalone server (dev, some CI setups) transactions are unavailable, so the
// runner falls back to a saga: each step registers a compensation with
// Tx.OnRollback, and if a later step fails the compensations run in reverse.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Tx is handed to the function run by a Runner.
type Tx struct {
	transactional bool
	compensations []func(ctx context.Context) error
}

// Transactional reports whether the writes are inside a real transaction.
func (t *Tx) Transactional() bool { return t.transactional }

// OnRollback registers fn to undo a step that has already been written.
// Inside a transaction it is never called; the abort undoes the step.
func (t *Tx) OnRollback(fn func(ctx context.Context) error) {
	if t.transactional {
		return
	}
	t.compensations = append(t.compensations, fn)
}

// Runner executes fn with all-or-nothing semantics. The ctx passed to fn must
// be used for every store call that belongs to the unit of work.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error
}

// Mongo runs units of work in MongoDB transactions when the deployment
// supports them and as sagas otherwise.
type Mongo struct {
	client      *mongo.Client
	log         *zap.Logger
	unsupported atomic.Bool
}

// New builds a Mongo runner. A nil client always uses the saga path.
func New(client *mongo.Client, logger *zap.Logger) *Mongo {
	return &Mongo{client: client, log: logger}
}

// Run implements Runner.
func (m *Mongo) Run(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	if m.client == nil || m.unsupported.Load() {
		return runSaga(ctx, m.log, fn)
	}

	sess, err := m.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			m.fallBack(err)
			return runSaga(ctx, m.log, fn)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &Tx{transactional: true})
	})
	if err != nil && IsNotSupported(err) {
		// The server rejects the first write carrying a txnNumber, so nothing
		// has been written yet and the saga path can start from scratch.
		m.fallBack(err)
		return runSaga(ctx, m.log, fn)
	}
	return err
}

func (m *Mongo) fallBack(cause error) {
	if m.unsupported.CompareAndSwap(false, true) {
		m.log.Warn("multi-document transactions unavailable; using compensating writes",
			zap.Error(cause))
	}
}

// Saga always runs units of work with compensations. It needs no database and
// is what service tests use.
type Saga struct {
	Log *zap.Logger
}

// NewSaga builds a Saga runner.
func NewSaga(logger *zap.Logger) *Saga {
	return &Saga{Log: logger}
}

// Run implements Runner.
func (s *Saga) Run(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return runSaga(ctx, s.Log, fn)
}

func runSaga(ctx context.Context, log *zap.Logger, fn func(ctx context.Context, tx *Tx) error) error {
	tx := &Tx{}
	err := fn(ctx, tx)
	if err == nil {
		return nil
	}

	// Compensate even if the caller's context is already done.
	cctx := context.WithoutCancel(ctx)
	var failed []error
	for i := len(tx.compensations) - 1; i >= 0; i-- {
		if cerr := tx.compensations[i](cctx); cerr != nil {
			if log != nil {
				log.Error("compensating write failed", zap.Error(cerr), zap.NamedError("cause", err))
			}
			failed = append(failed, cerr)
		}
	}
	if len(failed) > 0 {
		return errors.Join(append([]error{err}, failed...)...)
	}
	return err
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions (standalone server, unsupported storage engine).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		// 20 IllegalOperation, 51 (legacy) IllegalOperation, 263 OperationNotSupportedInTransaction
		if se.HasErrorCode(20) || se.HasErrorCode(51) || se.HasErrorCode(263) {
			return true
		}
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "transaction") &&
		(strings.Contains(s, "replica set") || strings.Contains(s, "session") || strings.Contains(s, "illegal operation")) {
		return true
	}
	return strings.Contains(s, "session") && strings.Contains(s, "not supported")
}
