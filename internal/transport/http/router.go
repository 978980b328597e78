// Package httptransport assembles the REST API: chi routing, middleware,
// handler wiring and the health/metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"classhub/internal/platform/metrics"
	"classhub/internal/platform/middleware"
	"classhub/internal/transport/http/shared"
)

// Pinger is the database health probe. A nil checker reports healthy.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps bundles everything the router needs.
type Deps struct {
	Users     *UserHandler
	Posts     *PostHandler
	Letters   *LetterHandler
	Classroom *ClassroomHandler
	Verifier  middleware.TokenVerifier
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	DB        Pinger
}

// NewRouter wires the public and authenticated API trees plus the operational
// endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(d.Metrics, "api"))

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		d.Users.Register(api)
		d.Posts.Register(api)
		d.Letters.Register(api)
		d.Classroom.Register(api)

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireAuth(d.Verifier, d.Logger))
			d.Users.RegisterProtected(protected)
			d.Posts.RegisterProtected(protected)
			d.Letters.RegisterProtected(protected)
		})
	})

	r.Get("/healthz", handleHealth(d.DB, d.Metrics, d.Logger))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func handleHealth(db Pinger, m *metrics.Metrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			start := time.Now()
			err := db.PingContext(r.Context())
			m.ObserveDBPing(time.Since(start))
			if err != nil {
				logger.ErrorContext(r.Context(), "health check failed",
					"request_id", middleware.GetRequestID(r.Context()),
					"error", err,
				)
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
