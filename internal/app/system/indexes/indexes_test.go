package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/clubhub/internal/app/system/indexes"
	"github.com/dalemusser/clubhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, ctx context.Context, c *mongo.Collection) map[string]bool {
	t.Helper()
	cur, err := c.Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	tests := []struct {
		collection string
		want       []string
	}{
		{"booking", []string{"idx_booking_status_email_created", "idx_booking_paystatus_paydate", "idx_booking_email_paystatus_paydate"}},
		{"payments", []string{"uniq_payments_booking", "uniq_payments_transaction", "idx_payments_email_date", "idx_payments_date"}},
		{"users", []string{"uniq_users_email"}},
		{"audit_events", []string{"idx_audit_created", "idx_audit_category_created", "idx_audit_subject_created"}},
	}
	for _, tt := range tests {
		t.Run(tt.collection, func(t *testing.T) {
			names := indexNames(t, ctx, db.Collection(tt.collection))
			for _, name := range tt.want {
				if !names[name] {
					t.Errorf("expected index %q on %s", name, tt.collection)
				}
			}
		})
	}
}

func TestEnsureAll_RenamesMisnamedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_1_legacy"),
	})
	if err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	names := indexNames(t, ctx, db.Collection("users"))
	if names["email_1_legacy"] || !names["uniq_users_email"] {
		t.Errorf("legacy index not replaced: %v", names)
	}
}

func TestEnsureAll_UniqueTransactionEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	c := db.Collection("payments")
	if _, err := c.InsertOne(ctx, bson.M{"booking_id": "b1", "transaction_id": "pi_1"}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := c.InsertOne(ctx, bson.M{"booking_id": "b2", "transaction_id": "pi_1"}); err == nil {
		t.Error("expected duplicate transaction_id to be rejected")
	}
}
