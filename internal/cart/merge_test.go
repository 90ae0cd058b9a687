package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
)

func seedGuest(f *fixture, token string) *models.Guest {
	guest := &models.Guest{
		ID:           uuid.New(),
		SessionToken: token,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	f.guests.byToken[token] = guest
	return guest
}

func TestMergeCombinesQuantitiesAndRetiresGuest(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	guest := seedGuest(f, "guest-token")

	variantA := f.addVariant("10.00")
	variantB := f.addVariant("5.00")

	userOwner := identity.ForUser(userID)
	guestOwner := identity.ForGuest(guest.ID)

	if _, err := f.svc.AddItem(context.Background(), userOwner, variantA, 2); err != nil {
		t.Fatalf("seed user cart failed: %v", err)
	}
	if _, err := f.svc.AddItem(context.Background(), guestOwner, variantA, 3); err != nil {
		t.Fatalf("seed guest cart failed: %v", err)
	}
	if _, err := f.svc.AddItem(context.Background(), guestOwner, variantB, 1); err != nil {
		t.Fatalf("seed guest cart failed: %v", err)
	}

	if err := f.svc.MergeGuestCart(context.Background(), userID, "guest-token"); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	view, err := f.svc.GetCart(context.Background(), userOwner)
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	quantities := map[uuid.UUID]int{}
	for _, item := range view.Items {
		quantities[item.ProductVariantID] = item.Quantity
	}
	if quantities[variantA] != 5 {
		t.Fatalf("expected combined quantity 5 for shared variant, got %d", quantities[variantA])
	}
	if quantities[variantB] != 1 {
		t.Fatalf("expected quantity 1 for guest-only variant, got %d", quantities[variantB])
	}

	if _, err := f.repo.FindByOwner(context.Background(), guestOwner); err == nil {
		t.Fatalf("guest cart should be deleted")
	}
	if len(f.guests.deleted) != 1 || f.guests.deleted[0] != guest.ID {
		t.Fatalf("guest session should be retired, got %v", f.guests.deleted)
	}
}

func TestMergeCreatesUserCartWhenMissing(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	guest := seedGuest(f, "guest-token")
	variantID := f.addVariant("10.00")

	if _, err := f.svc.AddItem(context.Background(), identity.ForGuest(guest.ID), variantID, 2); err != nil {
		t.Fatalf("seed guest cart failed: %v", err)
	}

	if err := f.svc.MergeGuestCart(context.Background(), userID, "guest-token"); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	view, err := f.svc.GetCart(context.Background(), identity.ForUser(userID))
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 2 {
		t.Fatalf("expected guest items moved into new user cart, got %+v", view.Items)
	}
}

func TestMergeIsIdempotentPerToken(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	guest := seedGuest(f, "guest-token")
	variantID := f.addVariant("10.00")

	if _, err := f.svc.AddItem(context.Background(), identity.ForGuest(guest.ID), variantID, 3); err != nil {
		t.Fatalf("seed guest cart failed: %v", err)
	}

	if err := f.svc.MergeGuestCart(context.Background(), userID, "guest-token"); err != nil {
		t.Fatalf("first merge failed: %v", err)
	}
	// The session is gone, so replaying the merge must not double quantities.
	if err := f.svc.MergeGuestCart(context.Background(), userID, "guest-token"); err != nil {
		t.Fatalf("second merge failed: %v", err)
	}

	view, err := f.svc.GetCart(context.Background(), identity.ForUser(userID))
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if view.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3 after replay, got %d", view.Items[0].Quantity)
	}
}

func TestMergeNoTokenIsNoOp(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.MergeGuestCart(context.Background(), uuid.New(), ""); err != nil {
		t.Fatalf("merge with empty token should no-op, got %v", err)
	}
	if len(f.repo.carts) != 0 {
		t.Fatalf("no carts should be created")
	}
}

func TestMergeUnknownTokenIsNoOp(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.MergeGuestCart(context.Background(), uuid.New(), "missing"); err != nil {
		t.Fatalf("merge with unknown token should no-op, got %v", err)
	}
}

func TestMergeGuestWithoutCartRetiresSession(t *testing.T) {
	f := newFixture(t)
	guest := seedGuest(f, "guest-token")

	if err := f.svc.MergeGuestCart(context.Background(), uuid.New(), "guest-token"); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if len(f.guests.deleted) != 1 || f.guests.deleted[0] != guest.ID {
		t.Fatalf("expected guest session retired, got %v", f.guests.deleted)
	}
	if len(f.repo.carts) != 0 {
		t.Fatalf("no user cart should be created for an empty merge")
	}
}
