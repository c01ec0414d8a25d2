// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
The unique indexes on payments are what make payment recording exactly-once,
so a failure here must stop the service.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		name   string
		ensure func(context.Context, *mongo.Database) error
	}{
		{"booking", ensureBookings},
		{"payments", ensurePayments},
		{"users", ensureUsers},
		{"audit_events", ensureAuditEvents},
	}
	for _, s := range sets {
		if err := s.ensure(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                      */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(b *bool) bool { return b != nil && *b }

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name.
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{} // key signature -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listIndexes(ctx, coll)

	for _, m := range models {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()
		fields := []zap.Field{
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", isUnique(unique)),
		}

		if err := reconcile(ctx, coll, m, name, unique, existing[sig]); err != nil {
			zap.L().Warn("index ensure failed", append(fields, zap.Error(err))...)
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Info("index ensured", append(fields, zap.Duration("took", time.Since(start)))...)
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// reconcile makes one desired index exist. An index with the same keys but a
// different name or uniqueness is dropped and recreated.
func reconcile(ctx context.Context, coll *mongo.Collection, m mongo.IndexModel, name string, unique *bool, ex existingIndex) error {
	if ex.Name != "" {
		if isUnique(unique) == isUnique(ex.Unique) && (name == "" || ex.Name == name) {
			return nil
		}
		if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
			return fmt.Errorf("drop %s: %w", ex.Name, err)
		}
	}

	_, err := coll.Indexes().CreateOne(ctx, m)
	if isOptionsConflictErr(err) {
		// Created concurrently (another instance starting up) under another
		// name; re-read and retry once.
		if again := listIndexes(ctx, coll)[keySig(m.Keys.(bson.D))]; again.Name != "" && again.Name != name {
			if _, dropErr := coll.Indexes().DropOne(ctx, again.Name); dropErr == nil {
				_, err = coll.Indexes().CreateOne(ctx, m)
			}
		}
	}
	if err != nil && wafflemongo.IsDup(err) && isUnique(unique) {
		return fmt.Errorf("cannot create unique index, duplicates present: %w", err)
	}
	return err
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureBookings(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("booking")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Pending queue and per-owner pending/approved lists.
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "email", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_booking_status_email_created"),
		},
		// Confirmed bookings sorted by payment date; also the reconciler scan.
		{
			Keys: bson.D{
				{Key: "payment_status", Value: 1},
				{Key: "payment_date", Value: -1},
			},
			Options: options.Index().SetName("idx_booking_paystatus_paydate"),
		},
		{
			Keys: bson.D{
				{Key: "email", Value: 1},
				{Key: "payment_status", Value: 1},
				{Key: "payment_date", Value: -1},
			},
			Options: options.Index().SetName("idx_booking_email_paystatus_paydate"),
		},
	})
}

func ensurePayments(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("payments")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// At most one payment per booking.
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_payments_booking"),
		},
		// A provider transaction settles exactly one booking.
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_payments_transaction"),
		},
		// Payment history
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "payment_date", Value: -1}},
			Options: options.Index().SetName("idx_payments_email_date"),
		},
		{
			Keys:    bson.D{{Key: "payment_date", Value: 1}},
			Options: options.Index().SetName("idx_payments_date"),
		},
	})
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
	})
}

func ensureAuditEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_created"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_created"),
		},
		{
			Keys:    bson.D{{Key: "subject_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_subject_created"),
		},
	})
}
