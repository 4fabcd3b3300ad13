package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/marketbloom/storefront-gateway/api/responses"
	"github.com/marketbloom/storefront-gateway/pkg/config"
	"github.com/marketbloom/storefront-gateway/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is anything that can report a dependency as reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks the journal database and redis. The commerce backend is
// deliberately excluded: the gateway stays up and serves guest carts even
// when the backend is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, journal, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		ready := true
		for name, dep := range map[string]Pinger{"journal": journal, "redis": cache} {
			if dep == nil {
				checks[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				ready = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				continue
			}
			checks[name] = "up"
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, checks)
	}
}
