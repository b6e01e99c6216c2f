// Package stub implements an offline, deterministic outbound caller backed by
// the text intelligence engine. It lets the service run without provider
// credentials and gives tests a realistic provider.
package stub

import (
	"encoding/json"
	"fmt"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/lead-intel/internal/domain"
	"github.com/fairyhunter13/lead-intel/internal/textintel"
)

// Client answers every operation from the engine.
type Client struct {
	engine *textintel.Engine
}

// New returns a stub client. A nil engine uses the default lexicon.
func New(engine *textintel.Engine) *Client {
	if engine == nil {
		engine = textintel.NewDefault()
	}
	return &Client{engine: engine}
}

// Provider names the upstream for logs and metrics.
func (c *Client) Provider() string { return "stub" }

// EstimateTokens approximates four bytes per token of the serialized payload.
func (c *Client) EstimateTokens(_ domain.OperationKind, payload any) int {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	return len(b)/4 + 1
}

// Call computes the answer for kind locally.
func (c *Client) Call(ctx domain.Context, kind domain.OperationKind, payload any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out any
	switch p := payload.(type) {
	case domain.LeadScoringPayload:
		res := domain.LeadScoringResult{Scored: make([]domain.ScoredLead, 0, len(p.Leads))}
		for _, l := range p.Leads {
			res.Scored = append(res.Scored, c.engine.ScoreLead(l))
		}
		out = res
	case domain.ConversationPayload:
		out = c.engine.Analyze(p.Text)
	case domain.VoiceCommandPayload:
		out = c.engine.ParseCommand(p.Text)
	case domain.SocialResearchPayload:
		out = c.engine.Research(p.Lead)
	case domain.PredictionPayload:
		out = c.engine.PredictOutcome(p.Lead, p.History)
	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: stub cannot serve %s with %T", domain.ErrInvalidArgument, kind, payload))
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("op=stub.Call: %w", err)
	}
	return b, nil
}
