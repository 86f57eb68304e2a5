package status

import (
	"log/slog"
	"net/http"

	"coach-client/internal/platform/logger"
	"coach-client/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

// NewRouter mounts the handler, the metrics endpoint and the request
// middleware. Browsers on allowedOrigins may poll it directly.
func NewRouter(h *Handler, log *slog.Logger, m *metrics.Metrics, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(m))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.Get("/healthz", h.Healthz)
	r.Get("/status", h.GetStatus)
	r.Get("/frame.png", h.GetFrame)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.ListRuns)
		r.Get("/{run_id}", h.GetRun)
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	return r
}
