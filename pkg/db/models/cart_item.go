package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one variant line in a cart. (cart_id, product_variant_id) is
// unique so concurrent adds collapse into a quantity increment.
type CartItem struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID           uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_variant"`
	ProductVariantID uuid.UUID `gorm:"column:product_variant_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_variant"`
	Quantity         int       `gorm:"column:quantity;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Variant *ProductVariant `gorm:"foreignKey:ProductVariantID"`
}
