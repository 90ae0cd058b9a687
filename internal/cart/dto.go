package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
)

// CartView is the denormalized cart returned to clients.
type CartView struct {
	ID        uuid.UUID       `json:"id"`
	Items     []CartItemView  `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartItemView is one display line of the cart.
type CartItemView struct {
	ID               uuid.UUID        `json:"id"`
	ProductVariantID uuid.UUID        `json:"product_variant_id"`
	ProductID        uuid.UUID        `json:"product_id"`
	ProductName      string           `json:"product_name"`
	SKU              string           `json:"sku"`
	Color            string           `json:"color,omitempty"`
	Size             string           `json:"size,omitempty"`
	Price            decimal.Decimal  `json:"price"`
	SalePrice        *decimal.Decimal `json:"sale_price,omitempty"`
	Quantity         int              `json:"quantity"`
	LineTotal        decimal.Decimal  `json:"line_total"`
}

func buildView(cart *models.Cart, items []models.CartItem) *CartView {
	view := &CartView{
		ID:       cart.ID,
		Items:    make([]CartItemView, 0, len(items)),
		Subtotal: decimal.Zero,
	}
	for i := range items {
		item := &items[i]
		line := CartItemView{
			ID:               item.ID,
			ProductVariantID: item.ProductVariantID,
			Quantity:         item.Quantity,
		}
		if v := item.Variant; v != nil {
			line.ProductID = v.ProductID
			line.SKU = v.SKU
			line.Price = v.Price
			line.SalePrice = v.SalePrice
			if v.Product != nil {
				line.ProductName = v.Product.Name
			}
			if v.Color != nil {
				line.Color = v.Color.Name
			}
			if v.Size != nil {
				line.Size = v.Size.Name
			}
			line.LineTotal = v.EffectivePrice().Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		view.ItemCount += item.Quantity
		view.Subtotal = view.Subtotal.Add(line.LineTotal)
		view.Items = append(view.Items, line)
	}
	return view
}
