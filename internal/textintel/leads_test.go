package textintel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

func TestScoreLead(t *testing.T) {
	t.Parallel()
	e := NewDefault()

	hot := e.ScoreLead(domain.Lead{
		ID: "l-1", Name: "Dana", Email: "dana@acme.io", Company: "Acme", Title: "CTO",
		Budget: 150000, EngagementScore: 80, Interactions: 6,
		Notes: "Great call, they want to buy and have budget approved for Q3.",
	})
	assert.Equal(t, "l-1", hot.LeadID)
	assert.Equal(t, "A", hot.Grade)
	assert.LessOrEqual(t, hot.Score, 100.0)
	assert.Contains(t, hot.Reasoning, "executive title")

	cold := e.ScoreLead(domain.Lead{ID: "l-2", Name: "Sam"})
	assert.Equal(t, 20.0, cold.Score)
	assert.Equal(t, "D", cold.Grade)
	assert.Equal(t, []string{"limited information available"}, cold.Reasoning)

	director := e.ScoreLead(domain.Lead{ID: "l-3", Name: "Lee", Title: "Director of Sales"})
	assert.Contains(t, director.Reasoning, "senior title")

	unhappy := e.ScoreLead(domain.Lead{ID: "l-4", Name: "Kim", Notes: "terrible, awful demo"})
	assert.Less(t, unhappy.Score, cold.Score)
	assert.GreaterOrEqual(t, unhappy.Score, 0.0)
}

func TestPredictOutcome(t *testing.T) {
	t.Parallel()
	e := NewDefault()
	lead := domain.Lead{ID: "l-1", Name: "Dana", Title: "VP Sales", Budget: 40000, EngagementScore: 60}

	p := e.PredictOutcome(lead, []domain.HistoryEvent{
		{Type: "meeting", Outcome: "great discussion"},
		{Type: "email", Outcome: "no reply"},
	})
	assert.GreaterOrEqual(t, p.ConversionProbability, 0.0)
	assert.LessOrEqual(t, p.ConversionProbability, 1.0)
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)
	assert.Greater(t, p.ExpectedValue, 0.0)
	assert.LessOrEqual(t, p.ExpectedValue, lead.Budget)
	assert.GreaterOrEqual(t, p.TimeToCloseDays, 7.0)

	none := e.PredictOutcome(domain.Lead{ID: "x", Name: "y"}, nil)
	assert.Equal(t, 0.0, none.ExpectedValue)
}

func TestResearch(t *testing.T) {
	t.Parallel()
	r := NewDefault().Research(domain.Lead{
		ID: "l-1", Name: "Dana", Industry: "fintech",
		Notes:         "Struggling with manual reporting, needs API integration",
		SocialHandles: []string{"linkedin:dana", "https://twitter.com/dana_k", "@dana", " "},
	})
	require.Len(t, r.Profiles, 3)
	assert.Equal(t, domain.SocialProfile{Platform: "linkedin", Handle: "dana"}, r.Profiles[0])
	assert.Equal(t, "twitter", r.Profiles[1].Platform)
	assert.Equal(t, "dana_k", r.Profiles[1].Handle)
	assert.Equal(t, "dana", r.Profiles[2].Handle)
	assert.Contains(t, r.Interests, "integration")
	assert.Contains(t, r.Opportunities, "Share a fintech case study")
	assert.NotEmpty(t, r.Opportunities)
}
