package domain

// SentimentLabel is the overall polarity of a text.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Urgency classifies how time-sensitive a conversation is.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Buying signal types.
const (
	SignalBudgetMentioned       = "budget_mentioned"
	SignalTimelineDiscussed     = "timeline_discussed"
	SignalDecisionMakerInvolved = "decision_maker_involved"
	SignalCompetitorComparison  = "competitor_comparison"
	SignalPainPointExpressed    = "pain_point_expressed"
)

// Sentiment of a text. Score in [-1,1]; Confidence in [0,1].
type Sentiment struct {
	Overall    SentimentLabel `json:"overall"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
}

// Intent of a text.
type Intent struct {
	PrimaryIntent string  `json:"primary_intent"`
	Confidence    float64 `json:"confidence"`
	Urgency       Urgency `json:"urgency"`
}

// BuyingSignal is one detected purchase-readiness phrase.
type BuyingSignal struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// Entities extracted from a text.
type Entities struct {
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
}

// Topics extracted from a text.
type Topics struct {
	MainTopics []string `json:"main_topics"`
	Keywords   []string `json:"keywords"`
	Entities   Entities `json:"entities"`
}

// ConversationAnalysis is the structured analysis of a conversation.
// Every slice is non-nil, possibly empty.
type ConversationAnalysis struct {
	Sentiment       Sentiment      `json:"sentiment"`
	Intent          Intent         `json:"intent"`
	BuyingSignals   []BuyingSignal `json:"buying_signals"`
	Topics          Topics         `json:"topics"`
	Recommendations []string       `json:"recommendations"`
	RiskFlags       []string       `json:"risk_flags"`
	NextBestActions []string       `json:"next_best_actions"`
}

// EnsureSlices replaces nil slices with empty ones so the value serializes with [] instead of null.
func (a *ConversationAnalysis) EnsureSlices() {
	if a.BuyingSignals == nil {
		a.BuyingSignals = []BuyingSignal{}
	}
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	if a.RiskFlags == nil {
		a.RiskFlags = []string{}
	}
	if a.NextBestActions == nil {
		a.NextBestActions = []string{}
	}
	if a.Topics.MainTopics == nil {
		a.Topics.MainTopics = []string{}
	}
	if a.Topics.Keywords == nil {
		a.Topics.Keywords = []string{}
	}
	if a.Topics.Entities.People == nil {
		a.Topics.Entities.People = []string{}
	}
	if a.Topics.Entities.Organizations == nil {
		a.Topics.Entities.Organizations = []string{}
	}
}
