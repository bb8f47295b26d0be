// Package httpapi serves the process health endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Pinger checks a dependency, e.g. the database pool.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// TimerCounter reports pending game timers.
type TimerCounter interface {
	Count() int
}

// SetupRoutes builds the router. timers may be nil.
func SetupRoutes(db Pinger, timers TimerCounter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(db, timers))
	return r
}

// Healthz reports that the process is up.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type readiness struct {
	Database string `json:"database"`
	Timers   int    `json:"timers"`
}

// Readyz reports whether the database answers.
func Readyz(db Pinger, timers TimerCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := readiness{Database: "ok"}
		if err := db.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Msg("Readiness check failed")
			status = http.StatusServiceUnavailable
			body.Database = err.Error()
		}
		if timers != nil {
			body.Timers = timers.Count()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
