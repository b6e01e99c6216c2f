package domain

// Outbound payloads. They are what gets validated, fingerprinted and sent to
// the provider, so every field that changes the answer must live here.

// LeadScoringPayload asks for scores of a batch of leads.
type LeadScoringPayload struct {
	Leads []Lead `json:"leads" validate:"required,min=1,max=100,dive"`
}

// ConversationPayload asks for the analysis of one conversation.
type ConversationPayload struct {
	Text    string              `json:"text" validate:"max=20000"`
	Context ConversationContext `json:"context"`
}

// VoiceCommandPayload asks for the parse of one transcribed command.
type VoiceCommandPayload struct {
	Text   string `json:"text" validate:"required,max=2000"`
	UserID string `json:"user_id" validate:"required,max=100"`
}

// SocialResearchPayload asks for the social footprint of a lead.
type SocialResearchPayload struct {
	Lead Lead `json:"lead"`
}

// PredictionPayload asks for an outcome forecast.
type PredictionPayload struct {
	Lead    Lead           `json:"lead"`
	History []HistoryEvent `json:"history" validate:"max=500,dive"`
}

// LeadScoringResult is the provider's answer for LeadScoringPayload.
type LeadScoringResult struct {
	Scored []ScoredLead `json:"scored"`
}
