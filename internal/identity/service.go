package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/pkg/config"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"gorm.io/gorm"
)

// GuestRepository is the persistence surface the resolver depends on.
type GuestRepository interface {
	Create(ctx context.Context, guest *models.Guest) (*models.Guest, error)
	FindByToken(ctx context.Context, token string) (*models.Guest, error)
	Delete(ctx context.Context, guest *models.Guest) error
}

// Resolution is the outcome of resolving a request to a cart owner.
// IssuedGuest is non-nil when a fresh guest session was minted and the
// transport layer must set (or replace) the session cookie.
type Resolution struct {
	Identity    Identity
	IssuedGuest *models.Guest
}

// Service resolves requests to a single cart owner, minting guest
// sessions on demand.
type Service interface {
	Resolve(ctx context.Context, userID *uuid.UUID, guestToken string) (*Resolution, error)
	Lookup(ctx context.Context, guestToken string) (*models.Guest, error)
}

type service struct {
	guests GuestRepository
	cfg    config.GuestConfig
	now    func() time.Time
}

// NewService constructs the session resolver.
func NewService(guests GuestRepository, cfg config.GuestConfig) (Service, error) {
	if guests == nil {
		return nil, fmt.Errorf("guest repository is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("guest ttl must be positive")
	}
	return &service{guests: guests, cfg: cfg, now: time.Now}, nil
}

// Resolve prefers the authenticated user; otherwise it validates the guest
// token, replacing missing or expired sessions with a fresh one. Two racing
// first-time requests may each mint their own guest, which is acceptable:
// both are valid owners of independent empty carts.
func (s *service) Resolve(ctx context.Context, userID *uuid.UUID, guestToken string) (*Resolution, error) {
	if userID != nil && *userID != uuid.Nil {
		return &Resolution{Identity: ForUser(*userID)}, nil
	}

	now := s.now().UTC()
	if guestToken != "" {
		guest, err := s.guests.FindByToken(ctx, guestToken)
		switch {
		case err == nil && !guest.Expired(now):
			return &Resolution{Identity: ForGuest(guest.ID)}, nil
		case err == nil:
			// Expired: drop the stale session before minting a new one.
			if err := s.guests.Delete(ctx, guest); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete expired guest")
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup guest")
		}
	}

	guest, err := s.guests.Create(ctx, &models.Guest{
		SessionToken: uuid.NewString(),
		ExpiresAt:    now.Add(s.cfg.TTL),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create guest")
	}

	return &Resolution{Identity: ForGuest(guest.ID), IssuedGuest: guest}, nil
}

// Lookup returns the live guest for the provided token, or nil when the
// token is unknown or expired. Used by flows that must not mint sessions.
func (s *service) Lookup(ctx context.Context, guestToken string) (*models.Guest, error) {
	if guestToken == "" {
		return nil, nil
	}
	guest, err := s.guests.FindByToken(ctx, guestToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup guest")
	}
	if guest.Expired(s.now().UTC()) {
		return nil, nil
	}
	return guest, nil
}
