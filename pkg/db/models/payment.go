package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/pkg/enums"
)

// Payment records how an order was settled. TransactionID carries the
// provider's checkout session id and its unique index is the idempotency
// arbiter for order finalization.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Method        enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'initiated'"`
	TransactionID *string             `gorm:"column:transaction_id;type:text;uniqueIndex:idx_payments_transaction_id"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
