package domain

import "time"

// Lead is the caller-facing view of a sales lead. Persistence lives elsewhere.
type Lead struct {
	ID              string   `json:"id" validate:"required,max=100"`
	Name            string   `json:"name" validate:"required,max=200"`
	Email           string   `json:"email,omitempty" validate:"omitempty,email"`
	Company         string   `json:"company,omitempty" validate:"max=200"`
	Title           string   `json:"title,omitempty" validate:"max=200"`
	Industry        string   `json:"industry,omitempty" validate:"max=100"`
	Source          string   `json:"source,omitempty" validate:"max=100"`
	Notes           string   `json:"notes,omitempty" validate:"max=20000"`
	Budget          float64  `json:"budget,omitempty" validate:"gte=0"`
	EngagementScore float64  `json:"engagement_score,omitempty" validate:"gte=0,lte=100"`
	Interactions    int      `json:"interactions,omitempty" validate:"gte=0"`
	SocialHandles   []string `json:"social_handles,omitempty" validate:"max=20,dive,max=200"`
}

// ScoredLead is the lead-scoring result. Score in [0,100]; Grade in {A,B,C,D}.
type ScoredLead struct {
	LeadID     string   `json:"lead_id"`
	Score      float64  `json:"score"`
	Grade      string   `json:"grade"`
	Reasoning  []string `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

// ConversationContext carries optional metadata about an analyzed conversation.
type ConversationContext struct {
	LeadID       string   `json:"lead_id,omitempty" validate:"max=100"`
	Channel      string   `json:"channel,omitempty" validate:"omitempty,oneof=email call chat meeting sms social"`
	Participants []string `json:"participants,omitempty" validate:"max=50,dive,max=200"`
}

// VoiceCommandResult is the parsed form of a spoken CRM command.
type VoiceCommandResult struct {
	Intent     string            `json:"intent"`
	Entities   map[string]string `json:"entities"`
	Confidence float64           `json:"confidence"`
}

// SocialProfile is one public profile found for a lead.
type SocialProfile struct {
	Platform  string `json:"platform"`
	Handle    string `json:"handle"`
	URL       string `json:"url,omitempty"`
	Followers int    `json:"followers,omitempty"`
}

// SocialResearch is the social-media research result for a lead.
type SocialResearch struct {
	Profiles      []SocialProfile `json:"profiles"`
	Interests     []string        `json:"interests"`
	Opportunities []string        `json:"opportunities"`
}

// HistoryEvent is one past interaction used for outcome prediction.
type HistoryEvent struct {
	Type       string    `json:"type" validate:"required,max=50"`
	Outcome    string    `json:"outcome,omitempty" validate:"max=200"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LeadPrediction is the predicted outcome for a lead.
// Invariants: ConversionProbability and Confidence in [0,1]; ExpectedValue, TimeToCloseDays >= 0.
type LeadPrediction struct {
	ConversionProbability float64 `json:"conversion_probability"`
	ExpectedValue         float64 `json:"expected_value"`
	TimeToCloseDays       float64 `json:"time_to_close_days"`
	Confidence            float64 `json:"confidence"`
}

// GradeForScore maps a 0-100 score to a letter grade.
func GradeForScore(score float64) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	default:
		return "D"
	}
}
