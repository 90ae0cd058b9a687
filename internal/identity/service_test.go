package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stride-labs/storefront-backend/pkg/config"
	"github.com/stride-labs/storefront-backend/pkg/db/models"
	"gorm.io/gorm"
)

type stubGuestRepo struct {
	byToken map[string]*models.Guest
	created []*models.Guest
	deleted []string
}

func newStubGuestRepo() *stubGuestRepo {
	return &stubGuestRepo{byToken: make(map[string]*models.Guest)}
}

func (s *stubGuestRepo) Create(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	guest.ID = uuid.New()
	s.byToken[guest.SessionToken] = guest
	s.created = append(s.created, guest)
	return guest, nil
}

func (s *stubGuestRepo) FindByToken(ctx context.Context, token string) (*models.Guest, error) {
	guest, ok := s.byToken[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return guest, nil
}

func (s *stubGuestRepo) Delete(ctx context.Context, guest *models.Guest) error {
	delete(s.byToken, guest.SessionToken)
	s.deleted = append(s.deleted, guest.SessionToken)
	return nil
}

func newTestService(t *testing.T, repo GuestRepository) Service {
	t.Helper()
	svc, err := NewService(repo, config.GuestConfig{CookieName: "guest_session", TTL: 168 * time.Hour})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestResolvePrefersUser(t *testing.T) {
	repo := newStubGuestRepo()
	svc := newTestService(t, repo)

	userID := uuid.New()
	res, err := svc.Resolve(context.Background(), &userID, "some-token")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !res.Identity.IsUser() || *res.Identity.UserID != userID {
		t.Fatalf("expected user identity, got %+v", res.Identity)
	}
	if res.IssuedGuest != nil {
		t.Fatalf("no guest should be minted for a signed-in user")
	}
	if len(repo.created) != 0 {
		t.Fatalf("unexpected guest creation")
	}
}

func TestResolveMintsGuestWithoutToken(t *testing.T) {
	repo := newStubGuestRepo()
	svc := newTestService(t, repo)

	res, err := svc.Resolve(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Identity.IsUser() || res.Identity.GuestID == nil {
		t.Fatalf("expected guest identity, got %+v", res.Identity)
	}
	if res.IssuedGuest == nil {
		t.Fatalf("expected a freshly issued guest")
	}
	if res.IssuedGuest.SessionToken == "" {
		t.Fatalf("issued guest must carry a session token")
	}
	if time.Until(res.IssuedGuest.ExpiresAt) < 167*time.Hour {
		t.Fatalf("expected roughly 7 day expiry, got %v", res.IssuedGuest.ExpiresAt)
	}
}

func TestResolveReusesLiveGuest(t *testing.T) {
	repo := newStubGuestRepo()
	svc := newTestService(t, repo)

	existing := &models.Guest{
		ID:           uuid.New(),
		SessionToken: "live-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	repo.byToken[existing.SessionToken] = existing

	res, err := svc.Resolve(context.Background(), nil, "live-token")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Identity.GuestID == nil || *res.Identity.GuestID != existing.ID {
		t.Fatalf("expected existing guest, got %+v", res.Identity)
	}
	if res.IssuedGuest != nil {
		t.Fatalf("live guest should not trigger a reissue")
	}
}

func TestResolveReplacesExpiredGuest(t *testing.T) {
	repo := newStubGuestRepo()
	svc := newTestService(t, repo)

	expired := &models.Guest{
		ID:           uuid.New(),
		SessionToken: "stale-token",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	repo.byToken[expired.SessionToken] = expired

	res, err := svc.Resolve(context.Background(), nil, "stale-token")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.IssuedGuest == nil {
		t.Fatalf("expected replacement guest to be issued")
	}
	if *res.Identity.GuestID == expired.ID {
		t.Fatalf("expired guest must not be reused")
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "stale-token" {
		t.Fatalf("expected stale session to be deleted, got %v", repo.deleted)
	}
}

func TestLookupSkipsExpiredAndUnknown(t *testing.T) {
	repo := newStubGuestRepo()
	svc := newTestService(t, repo)

	repo.byToken["stale"] = &models.Guest{
		ID:           uuid.New(),
		SessionToken: "stale",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	guest, err := svc.Lookup(context.Background(), "stale")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if guest != nil {
		t.Fatalf("expired guest should resolve to nil")
	}

	guest, err = svc.Lookup(context.Background(), "missing")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if guest != nil {
		t.Fatalf("unknown token should resolve to nil")
	}
}
