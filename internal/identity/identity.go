package identity

import "github.com/google/uuid"

// Identity names exactly one cart owner: a signed-in user or a guest session.
type Identity struct {
	UserID  *uuid.UUID
	GuestID *uuid.UUID
}

// ForUser builds a user identity.
func ForUser(id uuid.UUID) Identity {
	return Identity{UserID: &id}
}

// ForGuest builds a guest identity.
func ForGuest(id uuid.UUID) Identity {
	return Identity{GuestID: &id}
}

// IsUser reports whether the identity belongs to a signed-in user.
func (i Identity) IsUser() bool {
	return i.UserID != nil
}

// IsZero reports whether no owner is set.
func (i Identity) IsZero() bool {
	return i.UserID == nil && i.GuestID == nil
}
