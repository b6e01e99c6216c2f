package stub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

func TestCall_ServesEveryOperation(t *testing.T) {
	t.Parallel()
	c := New(nil)
	lead := domain.Lead{
		ID:            "l-1",
		Name:          "Dana Reyes",
		Title:         "VP of Sales",
		Company:       "Globex Inc",
		Budget:        50000,
		Notes:         "We have budget approved and want a demo next week.",
		SocialHandles: []string{"linkedin:danareyes", "@dana"},
	}

	raw, err := c.Call(context.Background(), domain.OpLeadScoring, domain.LeadScoringPayload{Leads: []domain.Lead{lead}})
	require.NoError(t, err)
	var scored domain.LeadScoringResult
	require.NoError(t, json.Unmarshal(raw, &scored))
	require.Len(t, scored.Scored, 1)
	assert.Equal(t, "l-1", scored.Scored[0].LeadID)

	raw, err = c.Call(context.Background(), domain.OpConversationAnalysis, domain.ConversationPayload{Text: "I want to buy your product, how can I purchase it?"})
	require.NoError(t, err)
	var analysis domain.ConversationAnalysis
	require.NoError(t, json.Unmarshal(raw, &analysis))
	assert.Equal(t, "purchase", analysis.Intent.PrimaryIntent)

	raw, err = c.Call(context.Background(), domain.OpVoiceCommand, domain.VoiceCommandPayload{Text: "log a call with Jane Smith", UserID: "u1"})
	require.NoError(t, err)
	var cmd domain.VoiceCommandResult
	require.NoError(t, json.Unmarshal(raw, &cmd))
	assert.Equal(t, "log_call", cmd.Intent)

	raw, err = c.Call(context.Background(), domain.OpSocialResearch, domain.SocialResearchPayload{Lead: lead})
	require.NoError(t, err)
	var research domain.SocialResearch
	require.NoError(t, json.Unmarshal(raw, &research))
	assert.Len(t, research.Profiles, 2)

	raw, err = c.Call(context.Background(), domain.OpPredictiveAnalytics, domain.PredictionPayload{Lead: lead})
	require.NoError(t, err)
	var pred domain.LeadPrediction
	require.NoError(t, json.Unmarshal(raw, &pred))
	assert.GreaterOrEqual(t, pred.ConversionProbability, 0.0)
	assert.LessOrEqual(t, pred.ConversionProbability, 1.0)
}

func TestCall_Deterministic(t *testing.T) {
	t.Parallel()
	c := New(nil)
	p := domain.ConversationPayload{Text: "Our CFO signs off by Friday; the current tool is too slow."}
	a, err := c.Call(context.Background(), domain.OpConversationAnalysis, p)
	require.NoError(t, err)
	b, err := c.Call(context.Background(), domain.OpConversationAnalysis, p)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestCall_UnknownPayload(t *testing.T) {
	t.Parallel()
	_, err := New(nil).Call(context.Background(), domain.OpLeadScoring, "leads please")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCall_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Call(ctx, domain.OpVoiceCommand, domain.VoiceCommandPayload{Text: "x", UserID: "u"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()
	c := New(nil)
	assert.Greater(t, c.EstimateTokens(domain.OpVoiceCommand, domain.VoiceCommandPayload{Text: "create a lead for Acme Corp", UserID: "u"}), 1)
	assert.Equal(t, "stub", c.Provider())
}
