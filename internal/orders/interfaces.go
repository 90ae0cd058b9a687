package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"github.com/stride-labs/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

// OrdersRepository is the persistence surface the order service depends on.
type OrdersRepository interface {
	WithTx(tx *gorm.DB) OrdersRepository

	CreateAddress(ctx context.Context, address *models.Address) (*models.Address, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)

	FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
}
