package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// CartRepository is the persistence surface the cart service depends on.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository

	FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindByOwner(ctx context.Context, owner identity.Identity) (*models.Cart, error)
	FindByOwnerForUpdate(ctx context.Context, owner identity.Identity) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	Delete(ctx context.Context, cartID uuid.UUID) error

	UpsertItem(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error
	FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
}
