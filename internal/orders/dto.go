package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"github.com/stride-labs/storefront-backend/pkg/enums"
)

// FinalizeResult reports the order a provider session resolved to.
type FinalizeResult struct {
	OrderID          uuid.UUID `json:"order_id"`
	AlreadyFinalized bool      `json:"already_finalized"`
}

// OrderDTO is the full order view returned to its owner.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	Status          enums.OrderStatus `json:"status"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemDTO    `json:"items"`
	ShippingAddress *AddressDTO       `json:"shipping_address,omitempty"`
	BillingAddress  *AddressDTO       `json:"billing_address,omitempty"`
	Payment         *PaymentDTO       `json:"payment,omitempty"`
}

// OrderItemDTO is one purchased line.
type OrderItemDTO struct {
	ID               uuid.UUID       `json:"id"`
	ProductVariantID uuid.UUID       `json:"product_variant_id"`
	ProductName      string          `json:"product_name"`
	SKU              string          `json:"sku"`
	Color            string          `json:"color,omitempty"`
	Size             string          `json:"size,omitempty"`
	Quantity         int             `json:"quantity"`
	PriceAtPurchase  decimal.Decimal `json:"price_at_purchase"`
}

// AddressDTO mirrors a captured checkout address.
type AddressDTO struct {
	FullName   string  `json:"full_name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

// PaymentDTO summarizes how the order was settled.
type PaymentDTO struct {
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

// OrderSummary is the compact view used in order history.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	ItemCount   int               `json:"item_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

// OrderHistoryPage is one page of the user's order history.
type OrderHistoryPage struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func fromModel(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:          order.ID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		Items:       make([]OrderItemDTO, 0, len(order.Items)),
	}
	for i := range order.Items {
		item := &order.Items[i]
		line := OrderItemDTO{
			ID:               item.ID,
			ProductVariantID: item.ProductVariantID,
			Quantity:         item.Quantity,
			PriceAtPurchase:  item.PriceAtPurchase,
		}
		if v := item.Variant; v != nil {
			line.SKU = v.SKU
			if v.Product != nil {
				line.ProductName = v.Product.Name
			}
			if v.Color != nil {
				line.Color = v.Color.Name
			}
			if v.Size != nil {
				line.Size = v.Size.Name
			}
		}
		dto.Items = append(dto.Items, line)
	}
	dto.ShippingAddress = addressDTO(order.ShippingAddress)
	dto.BillingAddress = addressDTO(order.BillingAddress)
	if p := order.Payment; p != nil {
		dto.Payment = &PaymentDTO{
			Method:        p.Method,
			Status:        p.Status,
			TransactionID: p.TransactionID,
			PaidAt:        p.PaidAt,
		}
	}
	return dto
}

func addressDTO(address *models.Address) *AddressDTO {
	if address == nil {
		return nil
	}
	return &AddressDTO{
		FullName:   address.FullName,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Phone:      address.Phone,
	}
}

func summarize(order *models.Order) OrderSummary {
	count := 0
	for i := range order.Items {
		count += order.Items[i].Quantity
	}
	return OrderSummary{
		ID:          order.ID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		ItemCount:   count,
		CreatedAt:   order.CreatedAt,
	}
}
