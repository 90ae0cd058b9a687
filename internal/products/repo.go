package products

import (
	"context"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes read-only catalog lookups.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindVariant loads a variant with its product and display axes.
func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Color").
		Preload("Size").
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindVariants loads the provided variants keyed by id.
func (r *Repository) FindVariants(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProductVariant, error) {
	result := make(map[uuid.UUID]*models.ProductVariant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []models.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Color").
		Preload("Size").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		v := rows[i]
		result[v.ID] = &v
	}
	return result, nil
}

// PrimaryImageURL returns the best display image for a variant, preferring a
// variant-specific primary image over the product-level one.
func (r *Repository) PrimaryImageURL(ctx context.Context, productID uuid.UUID, variantID uuid.UUID) (string, error) {
	var image models.ProductImage
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND (variant_id = ? OR variant_id IS NULL)", productID, variantID).
		Order("variant_id NULLS LAST, is_primary DESC, sort_order ASC").
		First(&image).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return image.URL, nil
}
