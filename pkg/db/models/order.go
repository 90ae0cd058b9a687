package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stride-labs/storefront-backend/pkg/enums"
)

// Order is a finalized purchase.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalAmount       decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	ShippingAddressID uuid.UUID         `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID  uuid.UUID         `gorm:"column:billing_address_id;type:uuid;not null"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`

	Items           []OrderItem `gorm:"foreignKey:OrderID"`
	Payment         *Payment    `gorm:"foreignKey:OrderID"`
	ShippingAddress *Address    `gorm:"foreignKey:ShippingAddressID"`
	BillingAddress  *Address    `gorm:"foreignKey:BillingAddressID"`
}
