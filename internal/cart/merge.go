package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"gorm.io/gorm"
)

// MergeGuestCart folds the guest's cart into the user's cart and retires the
// guest session. The whole merge runs in one transaction: the user cart row
// is locked so two concurrent sign-ins with the same token cannot both apply
// the guest items, and a failure partway leaves both carts untouched.
func (s *service) MergeGuestCart(ctx context.Context, userID uuid.UUID, guestToken string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if guestToken == "" {
		return nil
	}

	guest, err := s.guests.Lookup(ctx, guestToken)
	if err != nil {
		return err
	}
	if guest == nil {
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		guestRepo := s.guestRepo.WithTx(tx)

		guestCart, err := repo.FindByOwner(ctx, identity.ForGuest(guest.ID))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Nothing to merge; still retire the session so the
				// cookie cannot resurrect it.
				return retireGuest(ctx, guestRepo, guest)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load guest cart")
		}

		userCart, err := lockOrCreateUserCart(ctx, repo, userID)
		if err != nil {
			return err
		}

		items, err := repo.ListItems(ctx, guestCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list guest cart items")
		}
		for _, item := range items {
			if err := repo.UpsertItem(ctx, userCart.ID, item.ProductVariantID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart item")
			}
		}

		if err := repo.DeleteItems(ctx, guestCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete guest cart items")
		}
		if err := repo.Delete(ctx, guestCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete guest cart")
		}
		return retireGuest(ctx, guestRepo, guest)
	})
}

func lockOrCreateUserCart(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	owner := identity.ForUser(userID)
	locked, err := repo.FindByOwnerForUpdate(ctx, owner)
	if err == nil {
		return locked, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock user cart")
	}
	created, err := repo.Create(ctx, &models.Cart{UserID: owner.UserID})
	if err == nil {
		return created, nil
	}
	// Lost the creation race to a concurrent sign-in; lock the winner's row.
	locked, lockErr := repo.FindByOwnerForUpdate(ctx, owner)
	if lockErr == nil {
		return locked, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user cart")
}

func retireGuest(ctx context.Context, guests identity.GuestRepository, guest *models.Guest) error {
	if err := guests.Delete(ctx, guest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete guest session")
	}
	return nil
}
