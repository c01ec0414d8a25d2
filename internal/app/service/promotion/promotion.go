// Package promotion upgrades a club user to member when one of their bookings
// is approved.
package promotion

import (
	"context"
	"time"

	userstore "github.com/dalemusser/clubhub/internal/app/store/users"
	"github.com/dalemusser/clubhub/internal/app/system/apperr"
	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/app/system/txn"
	"go.uber.org/zap"
)

// Users is the part of the user store promotion needs.
type Users interface {
	Promote(ctx context.Context, email string, at time.Time) (userstore.PromoteResult, error)
	Demote(ctx context.Context, email string, at time.Time) (int64, error)
}

// Result reports the promotion outcome. Matched is false when no user has the
// email; that is not an error.
type Result struct {
	Matched  bool `json:"matched"`
	Promoted bool `json:"promoted"`
}

type Service struct {
	users Users
	log   *zap.Logger
	now   func() time.Time
}

func New(users Users, logger *zap.Logger) *Service {
	return &Service{users: users, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Promote runs a standalone promotion.
func (s *Service) Promote(ctx context.Context, email string) (Result, error) {
	return s.promote(ctx, nil, email)
}

// PromoteTx runs the promotion as a step of tx. On the saga path the exact
// promotion is undone if a later step fails.
func (s *Service) PromoteTx(ctx context.Context, tx *txn.Tx, email string) (Result, error) {
	return s.promote(ctx, tx, email)
}

func (s *Service) promote(ctx context.Context, tx *txn.Tx, email string) (Result, error) {
	email = normalize.Email(email)
	if email == "" {
		return Result{}, apperr.Validation("email is required")
	}

	at := s.now().Truncate(time.Millisecond)
	res, err := s.users.Promote(ctx, email, at)
	if err != nil {
		s.log.Error("promote user failed", zap.String("email", email), zap.Error(err))
		return Result{}, apperr.Store(err)
	}

	if !res.Matched {
		s.log.Warn("approved booking has no matching user", zap.String("email", email))
	}
	if res.Promoted && tx != nil {
		tx.OnRollback(func(ctx context.Context) error {
			_, err := s.users.Demote(ctx, email, at)
			return err
		})
	}
	return Result{Matched: res.Matched, Promoted: res.Promoted}, nil
}
