package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type variantLoader interface {
	FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
}

type guestLookup interface {
	Lookup(ctx context.Context, guestToken string) (*models.Guest, error)
}

type guestSessions interface {
	WithTx(tx *gorm.DB) identity.GuestRepository
}

// Service exposes cart operations keyed by the resolved owner identity.
type Service interface {
	GetCart(ctx context.Context, owner identity.Identity) (*CartView, error)
	AddItem(ctx context.Context, owner identity.Identity, variantID uuid.UUID, quantity int) (*CartView, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int, owner *identity.Identity) error
	RemoveItem(ctx context.Context, itemID uuid.UUID, owner *identity.Identity) error
	ClearCart(ctx context.Context, owner identity.Identity) error
	MergeGuestCart(ctx context.Context, userID uuid.UUID, guestToken string) error
}

type service struct {
	repo      CartRepository
	tx        txRunner
	variants  variantLoader
	guests    guestLookup
	guestRepo guestSessions
}

// ServiceParams bundles the dependencies required to build a cart service.
type ServiceParams struct {
	Repo      CartRepository
	Tx        txRunner
	Variants  variantLoader
	Guests    guestLookup
	GuestRepo guestSessions
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Variants == nil {
		return nil, fmt.Errorf("variant loader required")
	}
	if params.Guests == nil {
		return nil, fmt.Errorf("guest lookup required")
	}
	if params.GuestRepo == nil {
		return nil, fmt.Errorf("guest repository required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		variants:  params.Variants,
		guests:    params.Guests,
		guestRepo: params.GuestRepo,
	}, nil
}

// GetCart returns the owner's cart, creating an empty one on first access.
func (s *service) GetCart(ctx context.Context, owner identity.Identity) (*CartView, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	cart, err := s.getOrCreate(ctx, s.repo, owner)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
	}
	return buildView(cart, items), nil
}

// AddItem puts quantity units of the variant into the owner's cart. Adding a
// variant already present increments its line instead of duplicating it.
func (s *service) AddItem(ctx context.Context, owner identity.Identity, variantID uuid.UUID, quantity int) (*CartView, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if _, err := s.variants.FindVariant(ctx, variantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant")
	}

	cart, err := s.getOrCreate(ctx, s.repo, owner)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpsertItem(ctx, cart.ID, variantID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert cart item")
	}

	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart items")
	}
	return buildView(cart, items), nil
}

// UpdateItem sets the absolute quantity of a cart line. When owner is
// provided, the line must belong to the owner's cart.
func (s *service) UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int, owner *identity.Identity) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if _, err := s.loadOwnedItem(ctx, itemID, owner); err != nil {
		return err
	}
	if err := s.repo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	return nil
}

// RemoveItem deletes a cart line. When owner is provided, the line must
// belong to the owner's cart.
func (s *service) RemoveItem(ctx context.Context, itemID uuid.UUID, owner *identity.Identity) error {
	if _, err := s.loadOwnedItem(ctx, itemID, owner); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete cart item")
	}
	return nil
}

// ClearCart removes every line, keeping the cart row itself.
func (s *service) ClearCart(ctx context.Context, owner identity.Identity) error {
	if owner.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) loadOwnedItem(ctx context.Context, itemID uuid.UUID, owner *identity.Identity) (*models.CartItem, error) {
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	if owner == nil {
		return item, nil
	}

	cart, err := s.repo.FindByOwner(ctx, *owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item belongs to another cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if item.CartID != cart.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item belongs to another cart")
	}
	return item, nil
}

func (s *service) getOrCreate(ctx context.Context, repo CartRepository, owner identity.Identity) (*models.Cart, error) {
	cart, err := repo.FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	created, err := repo.Create(ctx, &models.Cart{UserID: owner.UserID, GuestID: owner.GuestID})
	if err == nil {
		return created, nil
	}
	// A concurrent request may have created the cart first; the unique owner
	// index turns that race into a retryable lookup.
	existing, findErr := repo.FindByOwner(ctx, owner)
	if findErr == nil {
		return existing, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
}
