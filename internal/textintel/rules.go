package textintel

import "github.com/fairyhunter13/lead-intel/internal/domain"

// ruleState is what a rule sees: the analysis under construction plus a few
// precomputed facts.
type ruleState struct {
	a       *domain.ConversationAnalysis
	signals map[string]bool
	tokens  int
}

func (s *ruleState) has(signal string) bool { return s.signals[signal] }

func (s *ruleState) intent(name string) bool { return s.a.Intent.PrimaryIntent == name }

func (s *ruleState) sentiment(l domain.SentimentLabel) bool { return s.a.Sentiment.Overall == l }

// rule fires its effect when its predicate holds. Every rule is evaluated
// independently, in declaration order.
type rule struct {
	name  string
	when  func(*ruleState) bool
	apply func(*ruleState)
}

func recommend(msg string) func(*ruleState) {
	return func(s *ruleState) { s.a.Recommendations = append(s.a.Recommendations, msg) }
}

func flag(name string) func(*ruleState) {
	return func(s *ruleState) { s.a.RiskFlags = append(s.a.RiskFlags, name) }
}

func act(msg string) func(*ruleState) {
	return func(s *ruleState) { s.a.NextBestActions = append(s.a.NextBestActions, msg) }
}

func all(effects ...func(*ruleState)) func(*ruleState) {
	return func(s *ruleState) {
		for _, f := range effects {
			f(s)
		}
	}
}

// Risk flag names.
const (
	RiskNegativeSentiment = "negative_sentiment"
	RiskCompetitiveThreat = "competitive_threat"
	RiskObjectionRaised   = "objection_raised"
	RiskLowEngagement     = "low_engagement"
	RiskSupportEscalation = "support_escalation"
)

func defaultRules() []rule {
	return []rule{
		{
			name:  "positive_momentum",
			when:  func(s *ruleState) bool { return s.sentiment(domain.SentimentPositive) },
			apply: recommend("Lead is responding positively; accelerate engagement and propose concrete next steps"),
		},
		{
			name:  "negative_sentiment",
			when:  func(s *ruleState) bool { return s.sentiment(domain.SentimentNegative) },
			apply: recommend("Acknowledge the lead's concerns before continuing the sales conversation"),
		},
		{
			name: "strong_negative_sentiment",
			when: func(s *ruleState) bool {
				return s.sentiment(domain.SentimentNegative) && s.a.Sentiment.Score <= strongNegativeCutoff
			},
			apply: flag(RiskNegativeSentiment),
		},
		{
			name: "competitor_comparison",
			when: func(s *ruleState) bool { return s.has(domain.SignalCompetitorComparison) },
			apply: all(
				flag(RiskCompetitiveThreat),
				recommend("Prepare a competitive comparison that highlights key differentiators"),
			),
		},
		{
			name: "objection",
			when: func(s *ruleState) bool { return s.intent("objection") },
			apply: all(
				flag(RiskObjectionRaised),
				act("Address the objection with a targeted case study or reference customer"),
			),
		},
		{
			name: "purchase_with_budget",
			when: func(s *ruleState) bool {
				return s.intent("purchase") && s.has(domain.SignalBudgetMentioned)
			},
			apply: act("Send a proposal and contract for review"),
		},
		{
			name: "purchase_without_budget",
			when: func(s *ruleState) bool {
				return s.intent("purchase") && !s.has(domain.SignalBudgetMentioned)
			},
			apply: act("Qualify budget and confirm the purchasing process"),
		},
		{
			name:  "demo_request",
			when:  func(s *ruleState) bool { return s.intent("demo") },
			apply: act("Schedule a product demo"),
		},
		{
			name:  "pricing_question",
			when:  func(s *ruleState) bool { return s.intent("pricing") },
			apply: act("Share pricing options with an ROI summary"),
		},
		{
			name: "support_issue",
			when: func(s *ruleState) bool { return s.intent("support") },
			apply: all(
				flag(RiskSupportEscalation),
				act("Route the issue to customer support and follow up on resolution"),
			),
		},
		{
			name:  "scheduling",
			when:  func(s *ruleState) bool { return s.intent("scheduling") },
			apply: act("Confirm a meeting time and send a calendar invite"),
		},
		{
			name:  "decision_maker",
			when:  func(s *ruleState) bool { return s.has(domain.SignalDecisionMakerInvolved) },
			apply: recommend("A decision maker is involved; tailor messaging to executive priorities"),
		},
		{
			name:  "timeline",
			when:  func(s *ruleState) bool { return s.has(domain.SignalTimelineDiscussed) },
			apply: recommend("Align the proposal and implementation plan with the stated timeline"),
		},
		{
			name:  "pain_point",
			when:  func(s *ruleState) bool { return s.has(domain.SignalPainPointExpressed) },
			apply: recommend("Position the solution directly against the pain points raised"),
		},
		{
			name:  "high_urgency",
			when:  func(s *ruleState) bool { return s.a.Intent.Urgency == domain.UrgencyHigh },
			apply: act("Respond within 24 hours"),
		},
		{
			name: "low_signal_density",
			when: func(s *ruleState) bool {
				return len(s.a.BuyingSignals) == 0 || float64(len(s.a.BuyingSignals))/float64(max(1, s.tokens)) < minSignalDensity
			},
			apply: act("Nurture with educational content and check back later"),
		},
		{
			name: "disengaged",
			when: func(s *ruleState) bool {
				return s.sentiment(domain.SentimentNegative) && len(s.signals) == 0
			},
			apply: flag(RiskLowEngagement),
		},
	}
}

func (e *Engine) applyRules(a *domain.ConversationAnalysis, tokens int) {
	s := &ruleState{a: a, signals: make(map[string]bool, len(a.BuyingSignals)), tokens: tokens}
	for _, sig := range a.BuyingSignals {
		s.signals[sig.Type] = true
	}
	for _, r := range e.rules {
		if r.when(s) {
			r.apply(s)
		}
	}
}
