package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stride-labs/storefront-backend/api/responses"
	identitysvc "github.com/stride-labs/storefront-backend/internal/identity"
	"github.com/stride-labs/storefront-backend/pkg/auth/session"
	"github.com/stride-labs/storefront-backend/pkg/config"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"github.com/stride-labs/storefront-backend/pkg/logger"
)

// Identity resolves the cart owner for storefront routes. A valid bearer token
// wins; otherwise the guest cookie is honored, minting a fresh guest session
// when the cookie is absent or expired. Requests with a present but invalid
// bearer token are rejected rather than silently downgraded to guest.
func Identity(
	jwtCfg config.JWTConfig,
	verifier session.AccessSessionChecker,
	resolver identitysvc.Service,
	guestCfg config.GuestConfig,
	logg *logger.Logger,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var userID *uuid.UUID
			if token := bearerToken(r); token != "" {
				claims, err := verifiedClaims(ctx, jwtCfg, verifier, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				id := claims.UserID
				userID = &id
				ctx = WithUserID(ctx, id.String())
				if logg != nil {
					ctx = logg.WithUserID(ctx, id.String())
				}
			}

			guestToken := ""
			if cookie, err := r.Cookie(guestCfg.CookieName); err == nil {
				guestToken = cookie.Value
			}

			resolution, err := resolver.Resolve(ctx, userID, guestToken)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve identity"))
				return
			}

			if resolution.IssuedGuest != nil {
				http.SetCookie(w, &http.Cookie{
					Name:     guestCfg.CookieName,
					Value:    resolution.IssuedGuest.SessionToken,
					Path:     "/",
					MaxAge:   int(guestCfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   true,
					SameSite: http.SameSiteStrictMode,
				})
			}

			ctx = WithIdentity(ctx, resolution.Identity)
			if logg != nil && resolution.Identity.GuestID != nil {
				ctx = logg.WithGuestID(ctx, resolution.Identity.GuestID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
