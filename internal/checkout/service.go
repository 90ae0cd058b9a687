package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/pkg/config"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
)

type cartLoader interface {
	FindByOwner(ctx context.Context, owner identity.Identity) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
}

type imageLoader interface {
	PrimaryImageURL(ctx context.Context, productID uuid.UUID, variantID uuid.UUID) (string, error)
}

// SessionDTO is returned to the client so it can redirect to the hosted page.
type SessionDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Service creates hosted checkout sessions for a resolved cart owner.
type Service interface {
	CreateSession(ctx context.Context, owner identity.Identity, guestToken string) (*SessionDTO, error)
}

type service struct {
	carts       cartLoader
	images      imageLoader
	provider    StripeCheckoutClient
	cfg         config.CheckoutConfig
	callTimeout time.Duration
}

// ServiceParams bundles the dependencies required to build a checkout service.
type ServiceParams struct {
	Carts       cartLoader
	Images      imageLoader
	Provider    StripeCheckoutClient
	Config      config.CheckoutConfig
	CallTimeout time.Duration
}

// NewService constructs a checkout service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart loader required")
	}
	if params.Images == nil {
		return nil, fmt.Errorf("image loader required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("checkout provider required")
	}
	if params.Config.AppBaseURL == "" {
		return nil, fmt.Errorf("app base url required")
	}
	timeout := params.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &service{
		carts:       params.Carts,
		images:      params.Images,
		provider:    params.Provider,
		cfg:         params.Config,
		callTimeout: timeout,
	}, nil
}

// CreateSession builds a hosted checkout session for the owner's cart. The
// cart itself is not mutated; abandoning the hosted page leaves it intact.
func (s *service) CreateSession(ctx context.Context, owner identity.Identity, guestToken string) (*SessionDTO, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}

	cart, err := s.carts.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is empty")
	}

	lineItems, err := s.buildLineItems(ctx, items)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(s.cfg.SuccessURL()),
		CancelURL:  stripe.String(s.cfg.CancelURL()),
		BillingAddressCollection: stripe.String(
			string(stripe.CheckoutSessionBillingAddressCollectionRequired),
		),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(s.cfg.AllowedCountries),
		},
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: sessionMetadata(cart, owner, guestToken),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	sess, err := s.provider.CreateSession(callCtx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout provider timed out")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	return &SessionDTO{SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *service) buildLineItems(ctx context.Context, items []models.CartItem) ([]*stripe.CheckoutSessionLineItemParams, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for i := range items {
		item := &items[i]
		variant := item.Variant
		if variant == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart item missing variant detail")
		}

		name := variant.SKU
		if variant.Product != nil && variant.Product.Name != "" {
			name = variant.Product.Name
		}

		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(name),
		}
		if desc := variantDescription(variant); desc != "" {
			productData.Description = stripe.String(desc)
		}
		if url, err := s.images.PrimaryImageURL(ctx, variant.ProductID, variant.ID); err == nil && url != "" {
			productData.Images = []*string{stripe.String(url)}
		}

		unitAmount := variant.EffectivePrice().Mul(centsFactor).IntPart()
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.currency()),
				UnitAmount:  stripe.Int64(unitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	return lineItems, nil
}

func (s *service) currency() string {
	if s.cfg.Currency == "" {
		return "usd"
	}
	return strings.ToLower(s.cfg.Currency)
}

func sessionMetadata(cart *models.Cart, owner identity.Identity, guestToken string) map[string]string {
	meta := map[string]string{"cartId": cart.ID.String()}
	if owner.UserID != nil {
		meta["userId"] = owner.UserID.String()
	}
	if guestToken != "" {
		meta["guestSessionToken"] = guestToken
	}
	return meta
}

// variantDescription renders the display axes as "color / size".
func variantDescription(variant *models.ProductVariant) string {
	var parts []string
	if variant.Color != nil && variant.Color.Name != "" {
		parts = append(parts, variant.Color.Name)
	}
	if variant.Size != nil && variant.Size.Name != "" {
		parts = append(parts, variant.Size.Name)
	}
	return strings.Join(parts, " / ")
}
