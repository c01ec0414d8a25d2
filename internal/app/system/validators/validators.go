// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	bookingstore "github.com/dalemusser/clubhub/internal/app/store/bookings"
	"github.com/dalemusser/clubhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates the club collections and attaches their JSON-Schema
// validators. Servers without collMod validator support (some DocumentDB
// versions) get the collections without validators.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure(bookingstore.Collection, bookingSchema())
	ensure("payments", paymentsSchema())
	ensure("users", usersSchema())

	// The audit trail is append-only and free-form in its details.
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers ---------------------- */

// ensureCollection creates name unless it already exists. A lost race with
// another instance counts as "exists".
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	names, listErr := db.ListCollectionNames(ctx, bson.M{"name": name})
	if listErr == nil && len(names) > 0 {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

// commandErr reports whether err is a server error with one of codes, or
// whose text mentions one of phrases (for servers that don't set codes).
func commandErr(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErr(err, []int32{48}, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErr(err, []int32{59}, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErr(err, []int32{115}, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func bookingSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email", "amount", "status", "payment_status", "created_at"},
			"properties": bson.M{
				"email":          bson.M{"bsonType": "string", "minLength": 3, "pattern": ".*@.*"},
				"amount":         bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 1},
				"status":         bson.M{"enum": bson.A{string(models.BookingPending), string(models.BookingApproved), string(models.BookingRejected)}},
				"payment_status": bson.M{"enum": bson.A{string(models.PaymentUnpaid), string(models.PaymentPaid)}},
				"court_id":       bson.M{"bsonType": "objectId"},
				"date":           bson.M{"bsonType": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
				"slots":          bson.M{"bsonType": "array", "items": bson.M{"bsonType": "string"}},
				"created_at":     bson.M{"bsonType": "date"},
				"decided_at":     bson.M{"bsonType": "date"},
				"payment_date":   bson.M{"bsonType": "date"},
			},
		},
	}
}

func paymentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"booking_id", "email", "amount", "transaction_id", "payment_date"},
			"properties": bson.M{
				"booking_id":     bson.M{"bsonType": "objectId"},
				"email":          bson.M{"bsonType": "string", "minLength": 3, "pattern": ".*@.*"},
				"amount":         bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 1},
				"transaction_id": bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"payment_date":   bson.M{"bsonType": "date"},
			},
		},
	}
}

// Role is optional: accounts created before roles existed are promoted the
// same way as plain users.
func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"email"},
			"properties": bson.M{
				"email":     bson.M{"bsonType": "string", "minLength": 3, "pattern": ".*@.*"},
				"role":      bson.M{"enum": bson.A{models.RoleUser, models.RoleMember, models.RoleAdmin, ""}},
				"joined_at": bson.M{"bsonType": "date"},
			},
		},
	}
}
