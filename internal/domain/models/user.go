// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role values for club accounts. Promotion only ever moves user -> member.
const (
	RoleUser   = "user"
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User is a club account. Account management lives elsewhere; this service
// reads users and owns the user -> member promotion.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name,omitempty" json:"name,omitempty"`
	Email    string             `bson:"email" json:"email"`
	Role     string             `bson:"role" json:"role"` // user | member | admin
	JoinedAt *time.Time         `bson:"joined_at,omitempty" json:"joined_at,omitempty"`

	CreatedAt time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
}
