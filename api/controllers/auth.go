package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stride-labs/storefront-backend/api/middleware"
	"github.com/stride-labs/storefront-backend/api/responses"
	"github.com/stride-labs/storefront-backend/api/validators"
	authsvc "github.com/stride-labs/storefront-backend/internal/auth"
	cartsvc "github.com/stride-labs/storefront-backend/internal/cart"
	"github.com/stride-labs/storefront-backend/pkg/config"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"github.com/stride-labs/storefront-backend/pkg/logger"
)

// AuthRegister creates an account and folds any guest cart into the new user's cart.
func AuthRegister(svc authsvc.Service, carts cartsvc.Service, guestCfg config.GuestConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload authsvc.RegisterRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Register(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mergeGuestCart(w, r, carts, guestCfg, resp.User.ID, logg)
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// AuthLogin authenticates the user and folds any guest cart into their cart.
func AuthLogin(svc authsvc.Service, carts cartsvc.Service, guestCfg config.GuestConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload authsvc.LoginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Login(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mergeGuestCart(w, r, carts, guestCfg, resp.User.ID, logg)
		responses.WriteSuccess(w, resp)
	}
}

// AuthRefresh rotates the refresh token pair.
func AuthRefresh(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload authsvc.RefreshRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pair, err := svc.Refresh(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pair)
	}
}

// AuthLogout revokes the caller's refresh session.
func AuthLogout(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		if err := svc.Logout(r.Context(), middleware.AccessIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// mergeGuestCart folds the cookie-identified guest cart into the user's cart.
// A merge failure is logged and the cookie kept, so the next sign-in retries it.
func mergeGuestCart(w http.ResponseWriter, r *http.Request, carts cartsvc.Service, guestCfg config.GuestConfig, userID uuid.UUID, logg *logger.Logger) {
	if carts == nil {
		return
	}
	cookie, err := r.Cookie(guestCfg.CookieName)
	if err != nil || cookie.Value == "" {
		return
	}

	if err := carts.MergeGuestCart(r.Context(), userID, cookie.Value); err != nil {
		if logg != nil {
			logg.Error(r.Context(), "guest cart merge failed", err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     guestCfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
