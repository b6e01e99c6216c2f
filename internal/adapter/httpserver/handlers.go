package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/fairyhunter13/lead-intel/internal/adapter/ai"
	"github.com/fairyhunter13/lead-intel/internal/config"
	"github.com/fairyhunter13/lead-intel/internal/domain"
	"github.com/fairyhunter13/lead-intel/internal/observability"
	"github.com/fairyhunter13/lead-intel/internal/service/ratelimiter"
	"github.com/fairyhunter13/lead-intel/internal/usecase"
)

// AIService is the orchestrator surface the handlers use.
type AIService interface {
	ScoreLeads(ctx context.Context, leads []domain.Lead) ([]domain.ScoredLead, error)
	AnalyzeConversation(ctx context.Context, text string, cc domain.ConversationContext) (domain.ConversationAnalysis, error)
	ProcessVoiceCommand(ctx context.Context, text, userID string) (domain.VoiceCommandResult, error)
	ResearchSocialMedia(ctx context.Context, lead domain.Lead) (domain.SocialResearch, error)
	PredictLeadOutcome(ctx context.Context, lead domain.Lead, history []domain.HistoryEvent) (domain.LeadPrediction, error)

	GetMetrics() observability.Snapshot
	GetRateLimitStatus(ctx context.Context) ratelimiter.Status
	GetCacheStats() ai.CacheStats
	HealthCheck(ctx context.Context) usecase.HealthReport
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	AI         AIService
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs the HTTP server. redisCheck may be nil when no Redis is configured.
func NewServer(cfg config.Config, svc AIService, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, AI: svc, RedisCheck: redisCheck}
}

// ScoreLeadsHandler scores a batch of leads.
func (s *Server) ScoreLeadsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.LeadScoringPayload
		if !s.decodeRequest(w, r, &req) {
			return
		}
		scored, err := s.AI.ScoreLeads(r.Context(), req.Leads)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, domain.LeadScoringResult{Scored: scored})
	}
}

// AnalyzeConversationHandler analyzes one conversation.
func (s *Server) AnalyzeConversationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.ConversationPayload
		if !s.decodeRequest(w, r, &req) {
			return
		}
		res, err := s.AI.AnalyzeConversation(r.Context(), req.Text, req.Context)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// VoiceCommandHandler parses a transcribed voice command.
func (s *Server) VoiceCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.VoiceCommandPayload
		if !s.decodeRequest(w, r, &req) {
			return
		}
		res, err := s.AI.ProcessVoiceCommand(r.Context(), req.Text, req.UserID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ResearchHandler researches the social footprint of a lead.
func (s *Server) ResearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.SocialResearchPayload
		if !s.decodeRequest(w, r, &req) {
			return
		}
		res, err := s.AI.ResearchSocialMedia(r.Context(), req.Lead)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// PredictHandler forecasts the outcome of a lead.
func (s *Server) PredictHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.PredictionPayload
		if !s.decodeRequest(w, r, &req) {
			return
		}
		res, err := s.AI.PredictLeadOutcome(r.Context(), req.Lead, req.History)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// AIMetricsHandler returns the in-process counters.
func (s *Server) AIMetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.AI.GetMetrics())
	}
}

// RateLimitHandler returns the live limiter window.
func (s *Server) RateLimitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.AI.GetRateLimitStatus(r.Context()))
	}
}

// CacheStatsHandler returns response cache counters.
func (s *Server) CacheStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.AI.GetCacheStats())
	}
}

// AIHealthHandler reports provider health. Unhealthy answers 503 so load
// balancers can act on it; degraded still answers 200.
func (s *Server) AIHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := s.AI.HealthCheck(r.Context())
		st := http.StatusOK
		if rep.Status == ai.HealthUnhealthy {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, rep)
	}
}

// ReadyzHandler probes the optional Redis dependency.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 1)
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		st := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				st = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
