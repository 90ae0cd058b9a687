package controllers

import (
	"net/http"

	"github.com/stride-labs/storefront-backend/api/middleware"
	"github.com/stride-labs/storefront-backend/api/responses"
	checkoutsvc "github.com/stride-labs/storefront-backend/internal/checkout"
	"github.com/stride-labs/storefront-backend/pkg/config"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"github.com/stride-labs/storefront-backend/pkg/logger"
)

// CheckoutCreateSession opens a provider-hosted checkout session for the
// caller's cart and returns the redirect URL.
func CheckoutCreateSession(svc checkoutsvc.Service, guestCfg config.GuestConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		owner := middleware.IdentityFromContext(r.Context())
		if owner.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "identity not resolved"))
			return
		}

		guestToken := ""
		if cookie, err := r.Cookie(guestCfg.CookieName); err == nil {
			guestToken = cookie.Value
		}

		session, err := svc.CreateSession(r.Context(), owner, guestToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}
