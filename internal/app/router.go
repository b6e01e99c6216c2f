package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/lead-intel/internal/adapter/httpserver"
	"github.com/fairyhunter13/lead-intel/internal/adapter/observability"
	"github.com/fairyhunter13/lead-intel/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.TraceMiddleware(cfg.OTELServiceName))
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// AI operations, rate limited per client IP ahead of the provider budget.
	r.Group(func(wr chi.Router) {
		if cfg.HTTPRateLimitPerMin > 0 {
			wr.Use(httprate.LimitByIP(cfg.HTTPRateLimitPerMin, time.Minute))
		}
		wr.Use(httpserver.Deadline(cfg.HTTPWriteTimeout))
		wr.Post("/v1/leads/score", srv.ScoreLeadsHandler())
		wr.Post("/v1/leads/research", srv.ResearchHandler())
		wr.Post("/v1/leads/predict", srv.PredictHandler())
		wr.Post("/v1/conversations/analyze", srv.AnalyzeConversationHandler())
		wr.Post("/v1/voice/commands", srv.VoiceCommandHandler())
	})

	r.Route("/v1/ai", func(ar chi.Router) {
		ar.Get("/metrics", srv.AIMetricsHandler())
		ar.Get("/rate-limit", srv.RateLimitHandler())
		ar.Get("/cache", srv.CacheStatsHandler())
		ar.Get("/health", srv.AIHealthHandler())
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	return httpserver.SecurityHeaders(r)
}
