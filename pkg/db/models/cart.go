package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart belongs to exactly one owner: a user or a guest, never both.
// The xor is enforced by a CHECK constraint plus unique owner indexes.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex"`
	GuestID   *uuid.UUID `gorm:"column:guest_id;type:uuid;uniqueIndex"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Items []CartItem `gorm:"foreignKey:CartID"`
}
