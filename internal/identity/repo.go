package identity

import (
	"context"

	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes persistence operations for guest sessions.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a guest repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) GuestRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new guest session.
func (r *Repository) Create(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	if err := r.db.WithContext(ctx).Create(guest).Error; err != nil {
		return nil, err
	}
	return guest, nil
}

// FindByToken loads a guest by its opaque session token.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.Guest, error) {
	var guest models.Guest
	if err := r.db.WithContext(ctx).Where("session_token = ?", token).First(&guest).Error; err != nil {
		return nil, err
	}
	return &guest, nil
}

// Delete removes a guest session. Owned carts cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, guest *models.Guest) error {
	return r.db.WithContext(ctx).Delete(guest).Error
}
