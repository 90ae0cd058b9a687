package models

import (
	"time"

	"github.com/google/uuid"
)

// Guest is an anonymous shopper session identified by an opaque cookie token.
type Guest struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionToken string    `gorm:"column:session_token;type:text;not null;uniqueIndex"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Expired reports whether the guest session has passed its expiry.
func (g *Guest) Expired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}
