package usecase

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

// ScoreLeads scores a batch of leads in input order. Leads the provider
// leaves out are scored by the heuristic engine.
func (o *Orchestrator) ScoreLeads(ctx context.Context, leads []domain.Lead) ([]domain.ScoredLead, error) {
	payload := domain.LeadScoringPayload{Leads: leads}
	res, err := execute(ctx, o, domain.OpLeadScoring, payload, func(r domain.LeadScoringResult) (domain.LeadScoringResult, float64, error) {
		return o.mergeScores(leads, r)
	})
	if err != nil {
		return nil, err
	}
	return res.Scored, nil
}

func (o *Orchestrator) mergeScores(leads []domain.Lead, r domain.LeadScoringResult) (domain.LeadScoringResult, float64, error) {
	byID := make(map[string]domain.ScoredLead, len(r.Scored))
	for _, s := range r.Scored {
		if s.LeadID != "" {
			byID[s.LeadID] = s
		}
	}
	out := domain.LeadScoringResult{Scored: make([]domain.ScoredLead, 0, len(leads))}
	var confSum float64
	for _, l := range leads {
		s, ok := byID[l.ID]
		if !ok {
			s = o.engine.ScoreLead(l)
		}
		s.LeadID = l.ID
		s.Score = math.Round(clamp(s.Score, 0, 100)*10) / 10
		s.Grade = domain.GradeForScore(s.Score)
		s.Confidence = clamp01(s.Confidence)
		if s.Reasoning == nil {
			s.Reasoning = []string{}
		}
		confSum += s.Confidence
		out.Scored = append(out.Scored, s)
	}
	var conf float64
	if len(out.Scored) > 0 {
		conf = confSum / float64(len(out.Scored))
	}
	return out, conf, nil
}

// AnalyzeConversation analyzes a conversation. Blank text is answered by the
// engine alone without touching the provider.
func (o *Orchestrator) AnalyzeConversation(ctx context.Context, text string, cc domain.ConversationContext) (domain.ConversationAnalysis, error) {
	payload := domain.ConversationPayload{Text: text, Context: cc}
	if strings.TrimSpace(text) == "" {
		if err := o.validate.StructCtx(ctx, payload); err != nil {
			return domain.ConversationAnalysis{}, invalid(domain.OpConversationAnalysis, err)
		}
		return o.AnalyzeConversationOffline(text), nil
	}
	local := sync.OnceValue(func() domain.ConversationAnalysis { return o.engine.Analyze(text) })
	return execute(ctx, o, domain.OpConversationAnalysis, payload, func(p domain.ConversationAnalysis) (domain.ConversationAnalysis, float64, error) {
		m := o.engine.Reapply(mergeAnalysis(p, local()), text)
		if len(p.Recommendations) > 0 {
			m.Recommendations = p.Recommendations
		}
		return m, m.Sentiment.Confidence, nil
	})
}

// AnalyzeConversationOffline runs only the local engine. It records no metrics.
func (o *Orchestrator) AnalyzeConversationOffline(text string) domain.ConversationAnalysis {
	return o.engine.Analyze(text)
}

// mergeAnalysis lets the provider win on fields it filled in. The engine
// fills the gaps and always owns signals. Risk flags and next actions carried
// over from local still reflect the engine's own sentiment and intent; callers
// rebuild them with Engine.Reapply.
func mergeAnalysis(p, local domain.ConversationAnalysis) domain.ConversationAnalysis {
	out := local

	if validSentiment(p.Sentiment) {
		out.Sentiment = domain.Sentiment{
			Overall:    p.Sentiment.Overall,
			Score:      clamp(p.Sentiment.Score, -1, 1),
			Confidence: clamp01(p.Sentiment.Confidence),
		}
	}
	if p.Intent.PrimaryIntent != "" {
		out.Intent.PrimaryIntent = p.Intent.PrimaryIntent
		out.Intent.Confidence = clamp01(p.Intent.Confidence)
	}
	switch p.Intent.Urgency {
	case domain.UrgencyLow, domain.UrgencyMedium, domain.UrgencyHigh:
		out.Intent.Urgency = p.Intent.Urgency
	}
	if len(p.Topics.MainTopics) > 0 {
		out.Topics.MainTopics = p.Topics.MainTopics
	}
	if len(p.Topics.Keywords) > 0 {
		out.Topics.Keywords = p.Topics.Keywords
	}
	if len(p.Topics.Entities.People) > 0 {
		out.Topics.Entities.People = p.Topics.Entities.People
	}
	if len(p.Topics.Entities.Organizations) > 0 {
		out.Topics.Entities.Organizations = p.Topics.Entities.Organizations
	}
	if len(p.Recommendations) > 0 {
		out.Recommendations = p.Recommendations
	}
	out.EnsureSlices()
	return out
}

// validSentiment rejects unknown labels and scores whose sign contradicts the label.
func validSentiment(s domain.Sentiment) bool {
	switch s.Overall {
	case domain.SentimentPositive:
		return s.Score > 0
	case domain.SentimentNegative:
		return s.Score < 0
	case domain.SentimentNeutral:
		return true
	default:
		return false
	}
}

// ProcessVoiceCommand parses a transcribed command for userID.
func (o *Orchestrator) ProcessVoiceCommand(ctx context.Context, text, userID string) (domain.VoiceCommandResult, error) {
	payload := domain.VoiceCommandPayload{Text: text, UserID: userID}
	local := sync.OnceValue(func() domain.VoiceCommandResult { return o.engine.ParseCommand(text) })
	return execute(ctx, o, domain.OpVoiceCommand, payload, func(p domain.VoiceCommandResult) (domain.VoiceCommandResult, float64, error) {
		m := mergeCommand(p, local())
		return m, m.Confidence, nil
	})
}

func mergeCommand(p, local domain.VoiceCommandResult) domain.VoiceCommandResult {
	out := domain.VoiceCommandResult{
		Intent:     local.Intent,
		Entities:   make(map[string]string, len(local.Entities)+len(p.Entities)),
		Confidence: clamp01(local.Confidence),
	}
	if p.Intent != "" {
		out.Intent = p.Intent
		out.Confidence = clamp01(p.Confidence)
	}
	for k, v := range local.Entities {
		out.Entities[k] = v
	}
	for k, v := range p.Entities {
		if v != "" {
			out.Entities[k] = v
		}
	}
	return out
}

// ResearchSocialMedia summarizes the public footprint of a lead.
func (o *Orchestrator) ResearchSocialMedia(ctx context.Context, lead domain.Lead) (domain.SocialResearch, error) {
	payload := domain.SocialResearchPayload{Lead: lead}
	return execute(ctx, o, domain.OpSocialResearch, payload, func(p domain.SocialResearch) (domain.SocialResearch, float64, error) {
		profiles := make([]domain.SocialProfile, 0, len(p.Profiles))
		for _, sp := range p.Profiles {
			if sp.Platform == "" || sp.Handle == "" {
				continue
			}
			if sp.Followers < 0 {
				sp.Followers = 0
			}
			profiles = append(profiles, sp)
		}
		p.Profiles = profiles
		if p.Interests == nil {
			p.Interests = []string{}
		}
		if p.Opportunities == nil {
			p.Opportunities = []string{}
		}
		conf := 0.5
		if len(profiles) > 0 {
			conf = 0.8
		}
		return p, conf, nil
	})
}

// PredictLeadOutcome forecasts conversion for lead given its history.
func (o *Orchestrator) PredictLeadOutcome(ctx context.Context, lead domain.Lead, history []domain.HistoryEvent) (domain.LeadPrediction, error) {
	payload := domain.PredictionPayload{Lead: lead, History: history}
	return execute(ctx, o, domain.OpPredictiveAnalytics, payload, func(p domain.LeadPrediction) (domain.LeadPrediction, float64, error) {
		p.ConversionProbability = clamp01(p.ConversionProbability)
		p.Confidence = clamp01(p.Confidence)
		p.ExpectedValue = math.Max(0, nanToZero(p.ExpectedValue))
		p.TimeToCloseDays = math.Max(0, nanToZero(p.TimeToCloseDays))
		return p, p.Confidence, nil
	})
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
