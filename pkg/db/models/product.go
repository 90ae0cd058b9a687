package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry; purchasable units live on ProductVariant.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	Category    string    `gorm:"column:category;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Color is a variant axis.
type Color struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name    string    `gorm:"column:name;not null"`
	HexCode string    `gorm:"column:hex_code;not null;default:''"`
}

// Size is a variant axis.
type Size struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null"`
}

// ProductVariant is the purchasable unit referenced by cart and order lines.
type ProductVariant struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	SKU       string           `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Price     decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	SalePrice *decimal.Decimal `gorm:"column:sale_price;type:numeric(10,2)"`
	ColorID   *uuid.UUID       `gorm:"column:color_id;type:uuid"`
	SizeID    *uuid.UUID       `gorm:"column:size_id;type:uuid"`
	InStock   bool             `gorm:"column:in_stock;not null;default:true"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`

	Product *Product `gorm:"foreignKey:ProductID"`
	Color   *Color   `gorm:"foreignKey:ColorID"`
	Size    *Size    `gorm:"foreignKey:SizeID"`
}

// EffectivePrice returns the sale price when one is set.
func (v *ProductVariant) EffectivePrice() decimal.Decimal {
	if v.SalePrice != nil {
		return *v.SalePrice
	}
	return v.Price
}

// ProductImage stores display media for a product or a specific variant.
type ProductImage struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	URL       string     `gorm:"column:url;not null"`
	IsPrimary bool       `gorm:"column:is_primary;not null;default:false"`
	SortOrder int        `gorm:"column:sort_order;not null;default:0"`
}
