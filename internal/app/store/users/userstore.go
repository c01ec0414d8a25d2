package userstore

import (
	"context"
	"time"

	"github.com/dalemusser/clubhub/internal/app/system/normalize"
	"github.com/dalemusser/clubhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// PromoteResult reports whether a user with the email exists and whether the
// call changed its role.
type PromoteResult struct {
	Matched  bool `json:"matched"`
	Promoted bool `json:"promoted"`
}

// GetByEmail looks up a user by case-insensitive email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts u with role "user" unless a role is given. It reports
// inserted=false when a user with the same email already exists.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, bool, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = normalize.Email(u.Email)
	u.Name = normalize.Name(u.Name)
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, false, nil
		}
		return models.User{}, false, err
	}
	return u, true, nil
}

// ListByRole returns users ordered by email. An empty role lists everyone.
func (s *Store) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Promote upgrades a plain user (or a legacy account with no role) to member
// and stamps joined_at. Members and admins are left untouched.
func (s *Store) Promote(ctx context.Context, email string, at time.Time) (PromoteResult, error) {
	email = normalize.Email(email)
	filter := bson.M{
		"email": email,
		"$or": bson.A{
			bson.M{"role": models.RoleUser},
			bson.M{"role": bson.M{"$exists": false}},
			bson.M{"role": ""},
		},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"role":      models.RoleMember,
		"joined_at": at,
	}})
	if err != nil {
		return PromoteResult{}, err
	}
	if res.ModifiedCount == 1 {
		return PromoteResult{Matched: true, Promoted: true}, nil
	}

	n, err := s.c.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return PromoteResult{}, err
	}
	return PromoteResult{Matched: n > 0}, nil
}

// Demote undoes a Promote made at `at`. Only the exact promotion is reverted,
// so a member who joined earlier keeps their role.
func (s *Store) Demote(ctx context.Context, email string, at time.Time) (int64, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"email":     normalize.Email(email),
			"role":      models.RoleMember,
			"joined_at": at,
		},
		bson.M{
			"$set":   bson.M{"role": models.RoleUser},
			"$unset": bson.M{"joined_at": ""},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
