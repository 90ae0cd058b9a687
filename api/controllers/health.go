package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/stride-labs/storefront-backend/api/responses"
	"github.com/stride-labs/storefront-backend/pkg/config"
	"github.com/stride-labs/storefront-backend/pkg/db"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"github.com/stride-labs/storefront-backend/pkg/logger"
	"github.com/stride-labs/storefront-backend/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when the datastore dependencies answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, database db.Pinger, cache redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		failed := false

		if database != nil {
			if err := database.Ping(ctx); err != nil {
				checks["postgres"] = "down"
				failed = true
			} else {
				checks["postgres"] = "ok"
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				checks["redis"] = "down"
				failed = true
			} else {
				checks["redis"] = "ok"
			}
		}

		if failed {
			details := map[string]any{}
			for name, state := range checks {
				details[name] = state
			}
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(details))
			return
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
