package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem snapshots a purchased variant with the price charged.
type OrderItem struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductVariantID uuid.UUID       `gorm:"column:product_variant_id;type:uuid;not null"`
	Quantity         int             `gorm:"column:quantity;not null"`
	PriceAtPurchase  decimal.Decimal `gorm:"column:price_at_purchase;type:numeric(10,2);not null"`

	Variant *ProductVariant `gorm:"foreignKey:ProductVariantID"`
}
