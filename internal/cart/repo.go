package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func ownerScope(q *gorm.DB, owner identity.Identity) *gorm.DB {
	if owner.UserID != nil {
		return q.Where("user_id = ?", *owner.UserID)
	}
	return q.Where("guest_id = ?", *owner.GuestID)
}

// FindByID loads a cart by primary key.
func (r *Repository) FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("id = ?", cartID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByOwner loads the cart owned by the provided identity.
func (r *Repository) FindByOwner(ctx context.Context, owner identity.Identity) (*models.Cart, error) {
	var cart models.Cart
	if err := ownerScope(r.db.WithContext(ctx), owner).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByOwnerForUpdate loads the owner's cart with a row lock, serializing
// concurrent writers against the same cart.
func (r *Repository) FindByOwnerForUpdate(ctx context.Context, owner identity.Identity) (*models.Cart, error) {
	var cart models.Cart
	err := ownerScope(r.db.WithContext(ctx), owner).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// Delete removes the cart row. Items cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", cartID).Delete(&models.Cart{}).Error
}

// UpsertItem inserts a cart line or atomically increments the existing one.
// The (cart_id, product_variant_id) unique index makes concurrent adds for
// the same variant combine instead of clobbering each other.
func (r *Repository) UpsertItem(ctx context.Context, cartID, variantID uuid.UUID, quantity int) error {
	item := models.CartItem{
		CartID:           cartID,
		ProductVariantID: variantID,
		Quantity:         quantity,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_variant_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
				"updated_at": gorm.Expr("now()"),
			}),
		}).
		Create(&item).Error
}

// FindItem loads a cart line by primary key.
func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItemQuantity sets the absolute quantity of a cart line.
func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

// DeleteItem removes a single cart line.
func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", itemID).Delete(&models.CartItem{}).Error
}

// DeleteItems removes every line in the cart.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// ListItems returns the cart's lines with variant detail for display.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Variant").
		Preload("Variant.Product").
		Preload("Variant.Color").
		Preload("Variant.Size").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
