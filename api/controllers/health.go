package controllers

import (
	"context"
	"net/http"

	"github.com/acidbutter96/mel-davis-store/api/responses"
	"github.com/acidbutter96/mel-davis-store/pkg/config"
	pkgerrors "github.com/acidbutter96/mel-davis-store/pkg/errors"
)

// DependencyPinger is the readiness surface of an external dependency.
type DependencyPinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MelDavis-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every registered dependency answers.
func HealthReady(cfg *config.Config, deps map[string]DependencyPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MelDavis-Env", cfg.App.Env)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), nil, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
