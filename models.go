package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Records are created once an email is verified and
// only the password hash changes afterwards.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ConsumedToken records a single use token that has been redeemed. Rows can
// be dropped once ExpiresAt has passed since the token no longer verifies.
type ConsumedToken struct {
	bun.BaseModel `bun:"table:consumed_tokens,alias:ct"`
	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	Purpose       TokenPurpose `bun:"purpose,notnull" json:"purpose"`
	UserID        *uuid.UUID   `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	ExpiresAt     time.Time    `bun:"expires_at,notnull" json:"expires_at"`
	ConsumedAt    time.Time    `bun:"consumed_at,notnull" json:"consumed_at"`
}
