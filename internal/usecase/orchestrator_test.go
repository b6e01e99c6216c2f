package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/lead-intel/internal/adapter/ai"
	"github.com/fairyhunter13/lead-intel/internal/adapter/ai/stub"
	"github.com/fairyhunter13/lead-intel/internal/domain"
	"github.com/fairyhunter13/lead-intel/internal/domain/mocks"
	"github.com/fairyhunter13/lead-intel/internal/observability"
	"github.com/fairyhunter13/lead-intel/internal/service/ratelimiter"
	"github.com/fairyhunter13/lead-intel/internal/usecase"
)

func fastRetry(maxRetries int) ai.RetryPolicy {
	return ai.RetryPolicy{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
	}
}

func defaultOptions() usecase.Options {
	return usecase.Options{Timeout: time.Second, CacheEnabled: true, CacheTTL: time.Minute}
}

func newOrchestrator(t *testing.T, d usecase.Deps, opts usecase.Options) *usecase.Orchestrator {
	t.Helper()
	if d.Metrics == nil {
		d.Metrics = observability.NewRegistry(100)
	}
	o, err := usecase.NewOrchestrator(d, opts)
	require.NoError(t, err)
	return o
}

func testLead(id string) domain.Lead {
	return domain.Lead{
		ID:              id,
		Name:            "Dana Reyes",
		Title:           "VP of Sales",
		Company:         "Globex Inc",
		Budget:          50000,
		EngagementScore: 70,
		Notes:           "Budget approved, wants a demo next week.",
	}
}

func TestNewOrchestrator_RequiresCaller(t *testing.T) {
	t.Parallel()
	_, err := usecase.NewOrchestrator(usecase.Deps{}, defaultOptions())
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestScoreLeads_CacheHitSkipsProvider(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpLeadScoring, mock.Anything).
		Return(json.RawMessage(`{"scored":[{"lead_id":"l-1","score":72,"reasoning":["senior title"],"confidence":0.8}]}`), nil).
		Once()

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, defaultOptions())
	leads := []domain.Lead{testLead("l-1")}

	first, err := o.ScoreLeads(context.Background(), leads)
	require.NoError(t, err)
	second, err := o.ScoreLeads(context.Background(), leads)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.Equal(t, "B", first[0].Grade)

	m := o.GetMetrics()
	assert.EqualValues(t, 1, m.TotalRequests)
	assert.EqualValues(t, 1, m.SuccessfulRequests)
	assert.EqualValues(t, 1, m.CacheHits)
	assert.EqualValues(t, 1, m.CacheMisses)
	assert.InDelta(t, 0.5, m.CacheHitRate, 1e-9)
	assert.Equal(t, 1, o.GetCacheStats().Size)
}

func TestScoreLeads_ClampsAndFillsOmittedLeads(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpLeadScoring, mock.Anything).
		Return(json.RawMessage(`{"scored":[{"lead_id":"l-2","score":140,"grade":"D","confidence":3}]}`), nil)

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, defaultOptions())
	got, err := o.ScoreLeads(context.Background(), []domain.Lead{testLead("l-1"), testLead("l-2")})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "l-1", got[0].LeadID)
	assert.NotEmpty(t, got[0].Reasoning)
	assert.Equal(t, domain.GradeForScore(got[0].Score), got[0].Grade)

	assert.Equal(t, "l-2", got[1].LeadID)
	assert.Equal(t, 100.0, got[1].Score)
	assert.Equal(t, "A", got[1].Grade)
	assert.Equal(t, 1.0, got[1].Confidence)
	assert.NotNil(t, got[1].Reasoning)
}

func TestValidationError_HasNoSideEffects(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, defaultOptions())

	_, err := o.ScoreLeads(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = o.ProcessVoiceCommand(context.Background(), "", "u-1")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = o.PredictLeadOutcome(context.Background(), domain.Lead{Name: "missing id"}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = o.AnalyzeConversation(context.Background(), "hello", domain.ConversationContext{Channel: "pigeon"})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	assert.Equal(t, observability.Snapshot{ByOperation: map[string]int64{}}, o.GetMetrics())
	cs := o.GetCacheStats()
	assert.Zero(t, cs.Hits+cs.Misses)
	assert.Zero(t, o.GetRateLimitStatus(context.Background()).Admitted)
	caller.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
}

func TestRateLimited_RejectsWithRetryAfter(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpSocialResearch, mock.Anything).
		Return(json.RawMessage(`{"profiles":[],"interests":[],"opportunities":[]}`), nil).
		Once()

	limiter := ratelimiter.NewWindowLimiter(ratelimiter.Limits{RequestsPerWindow: 1, Window: time.Minute})
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Limiter: limiter, Retry: fastRetry(0)}, defaultOptions())

	_, err := o.ResearchSocialMedia(context.Background(), testLead("l-1"))
	require.NoError(t, err)
	_, err = o.ResearchSocialMedia(context.Background(), testLead("l-2"))
	require.ErrorIs(t, err, domain.ErrRateLimited)

	var rl *domain.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Greater(t, rl.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rl.RetryAfter, time.Minute)

	m := o.GetMetrics()
	assert.EqualValues(t, 1, m.RateLimited)
	assert.EqualValues(t, 1, m.TotalRequests)
	assert.EqualValues(t, 1, m.SuccessfulRequests)
	assert.Zero(t, m.FailedRequests)
}

func TestRetry_SucceedsOnFinalAttempt(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpPredictiveAnalytics, mock.Anything).
		Return(nil, errors.New("upstream 503")).Times(2)
	caller.EXPECT().Call(mock.Anything, domain.OpPredictiveAnalytics, mock.Anything).
		Return(json.RawMessage(`{"conversion_probability":0.4,"expected_value":1000,"time_to_close_days":30,"confidence":0.7}`), nil).
		Once()

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(2)}, defaultOptions())
	p, err := o.PredictLeadOutcome(context.Background(), testLead("l-1"), nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, p.ConversionProbability, 1e-9)

	m := o.GetMetrics()
	assert.EqualValues(t, 3, m.TotalRequests)
	assert.EqualValues(t, 1, m.SuccessfulRequests)
	assert.Zero(t, m.FailedRequests)
	caller.AssertNumberOfCalls(t, "Call", 3)
}

func TestRetry_ExhaustedReturnsProviderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("upstream 502")
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpPredictiveAnalytics, mock.Anything).Return(nil, boom)

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(2)}, defaultOptions())
	_, err := o.PredictLeadOutcome(context.Background(), testLead("l-1"), nil)
	require.ErrorIs(t, err, domain.ErrUpstream)
	require.ErrorIs(t, err, boom)

	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Attempts)
	assert.Equal(t, domain.OpPredictiveAnalytics, pe.Kind)

	m := o.GetMetrics()
	assert.EqualValues(t, 3, m.TotalRequests)
	assert.EqualValues(t, 1, m.FailedRequests)
	assert.Zero(t, m.SuccessfulRequests)
	assert.Zero(t, o.GetCacheStats().Size)
}

func TestRetry_PermanentErrorStopsEarly(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpVoiceCommand, mock.Anything).
		Return(nil, backoff.Permanent(errors.New("status 401"))).Once()

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(3)}, defaultOptions())
	_, err := o.ProcessVoiceCommand(context.Background(), "log a call with Bob", "u-1")
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.EqualValues(t, 1, o.GetMetrics().TotalRequests)
}

func TestTimeout_IsReportedAndNeverCached(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpSocialResearch, mock.Anything).
		RunAndReturn(func(ctx context.Context, _ domain.OperationKind, _ interface{}) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	opts := defaultOptions()
	opts.Timeout = 20 * time.Millisecond
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(1)}, opts)

	_, err := o.ResearchSocialMedia(context.Background(), testLead("l-1"))
	require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	assert.False(t, errors.Is(err, domain.ErrUpstream))

	m := o.GetMetrics()
	assert.EqualValues(t, 2, m.TotalRequests)
	assert.EqualValues(t, 1, m.Timeouts)
	assert.EqualValues(t, 1, m.FailedRequests)
	assert.Zero(t, o.GetCacheStats().Size)
}

func TestTimeout_AbandonsUnresponsiveCaller(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	defer close(release)
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpSocialResearch, mock.Anything).
		RunAndReturn(func(context.Context, domain.OperationKind, interface{}) (json.RawMessage, error) {
			<-release
			return json.RawMessage(`{"profiles":[]}`), nil
		}).Once()

	opts := defaultOptions()
	opts.Timeout = 20 * time.Millisecond
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, opts)

	start := time.Now()
	_, err := o.ResearchSocialMedia(context.Background(), testLead("l-1"))
	require.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCanceledContext_StopsRetrying(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpPredictiveAnalytics, mock.Anything).
		RunAndReturn(func(context.Context, domain.OperationKind, interface{}) (json.RawMessage, error) {
			cancel()
			return nil, errors.New("connection reset")
		}).Once()

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(3)}, defaultOptions())
	_, err := o.PredictLeadOutcome(ctx, testLead("l-1"), nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, o.GetMetrics().FailedRequests)
}

func TestAnalyzeConversation_ProviderWinsEngineOwnsSignals(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpConversationAnalysis, mock.Anything).
		Return(json.RawMessage(`{
			"sentiment":{"overall":"negative","score":-0.4,"confidence":0.9},
			"intent":{"primary_intent":"support","confidence":0.7,"urgency":"bogus"},
			"buying_signals":[{"type":"made_up","confidence":1,"evidence":"x"}],
			"risk_flags":["provider flag"],
			"recommendations":["Call them back"]
		}`), nil)

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, defaultOptions())
	text := "We love the demo and our budget is $50k, we need it by next month."
	got, err := o.AnalyzeConversation(context.Background(), text, domain.ConversationContext{Channel: "call"})
	require.NoError(t, err)

	local := o.AnalyzeConversationOffline(text)
	assert.Equal(t, domain.SentimentNegative, got.Sentiment.Overall)
	assert.Equal(t, -0.4, got.Sentiment.Score)
	assert.Equal(t, "support", got.Intent.PrimaryIntent)
	assert.Equal(t, local.Intent.Urgency, got.Intent.Urgency)
	assert.Equal(t, local.BuyingSignals, got.BuyingSignals)
	assert.Equal(t, []string{"Call them back"}, got.Recommendations)

	// Rules follow the merged sentiment and intent, not the engine's own.
	assert.Equal(t, domain.SentimentPositive, local.Sentiment.Overall)
	assert.Contains(t, got.RiskFlags, "support_escalation")
	assert.NotContains(t, got.RiskFlags, "provider flag")
	assert.Contains(t, got.NextBestActions, "Route the issue to customer support and follow up on resolution")
	assert.NotContains(t, got.NextBestActions, "Schedule a product demo")
	assert.Equal(t, local.Topics.Keywords, got.Topics.Keywords)

	var types []string
	for _, s := range got.BuyingSignals {
		types = append(types, s.Type)
	}
	assert.Contains(t, types, domain.SignalBudgetMentioned)
	assert.NotContains(t, types, "made_up")
}

func TestCache_CaseVariantsGetSeparateEntries(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t, usecase.Deps{Caller: stub.New(nil), Retry: fastRetry(0)}, defaultOptions())
	ctx := context.Background()

	upper, err := o.AnalyzeConversation(ctx, "We met John Smith from Acme Corp yesterday.", domain.ConversationContext{})
	require.NoError(t, err)
	lower, err := o.AnalyzeConversation(ctx, "we met john smith from acme corp yesterday.", domain.ConversationContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"John Smith"}, upper.Topics.Entities.People)
	assert.Equal(t, []string{"Acme Corp"}, upper.Topics.Entities.Organizations)
	assert.Empty(t, lower.Topics.Entities.People)
	assert.Empty(t, lower.Topics.Entities.Organizations)

	first, err := o.ScoreLeads(ctx, []domain.Lead{testLead("Lead-AB")})
	require.NoError(t, err)
	second, err := o.ScoreLeads(ctx, []domain.Lead{testLead("lead-ab")})
	require.NoError(t, err)
	assert.Equal(t, "Lead-AB", first[0].LeadID)
	assert.Equal(t, "lead-ab", second[0].LeadID)

	assert.Equal(t, 4, o.GetCacheStats().Size)
	assert.Zero(t, o.GetMetrics().CacheHits)
}

func TestAnalyzeConversation_BlankTextStaysLocal(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, defaultOptions())

	got, err := o.AnalyzeConversation(context.Background(), "   ", domain.ConversationContext{})
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNeutral, got.Sentiment.Overall)
	assert.Empty(t, got.BuyingSignals)
	assert.NotNil(t, got.BuyingSignals)
	assert.Zero(t, o.GetMetrics().TotalRequests)
	assert.Zero(t, o.GetCacheStats().Misses)
}

func TestProcessVoiceCommand_MergesEntities(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpVoiceCommand, domain.VoiceCommandPayload{
		Text:   "Schedule a meeting with John Smith tomorrow at 3pm",
		UserID: "u-7",
	}).Return(json.RawMessage(`{"intent":"schedule_meeting","entities":{"time":"15:00","topic":"pricing"},"confidence":0.93}`), nil)

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, defaultOptions())
	got, err := o.ProcessVoiceCommand(context.Background(), "Schedule a meeting with John Smith tomorrow at 3pm", "u-7")
	require.NoError(t, err)
	assert.Equal(t, "schedule_meeting", got.Intent)
	assert.Equal(t, 0.93, got.Confidence)
	assert.Equal(t, "15:00", got.Entities["time"])
	assert.Equal(t, "pricing", got.Entities["topic"])
	assert.Equal(t, "John Smith", got.Entities["person"])
	assert.Equal(t, "tomorrow", got.Entities["date"])
}

func TestPredictLeadOutcome_ClampsProviderValues(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpPredictiveAnalytics, mock.Anything).
		Return(json.RawMessage(`{"conversion_probability":1.7,"expected_value":-5,"time_to_close_days":12,"confidence":-0.2}`), nil)

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, defaultOptions())
	got, err := o.PredictLeadOutcome(context.Background(), testLead("l-1"), []domain.HistoryEvent{{Type: "call", Outcome: "positive"}})
	require.NoError(t, err)
	assert.Equal(t, domain.LeadPrediction{ConversionProbability: 1, ExpectedValue: 0, TimeToCloseDays: 12, Confidence: 0}, got)
}

func TestMalformedProviderAnswer_IsRetried(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpPredictiveAnalytics, mock.Anything).
		Return(json.RawMessage(`{"conversion_probability":"high"}`), nil).Once()
	caller.EXPECT().Call(mock.Anything, domain.OpPredictiveAnalytics, mock.Anything).
		Return(json.RawMessage(`{"conversion_probability":0.2,"confidence":0.5}`), nil).Once()

	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(1)}, defaultOptions())
	got, err := o.PredictLeadOutcome(context.Background(), testLead("l-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.ConversionProbability)
	assert.EqualValues(t, 2, o.GetMetrics().TotalRequests)
}

func TestCacheDisabled_AlwaysCallsProvider(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpSocialResearch, mock.Anything).
		Return(json.RawMessage(`{"profiles":[{"platform":"twitter","handle":"dana","followers":-3},{"platform":"","handle":"x"}]}`), nil).
		Times(2)

	opts := defaultOptions()
	opts.CacheEnabled = false
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, opts)
	for i := 0; i < 2; i++ {
		got, err := o.ResearchSocialMedia(context.Background(), testLead("l-1"))
		require.NoError(t, err)
		require.Len(t, got.Profiles, 1)
		assert.Zero(t, got.Profiles[0].Followers)
		assert.NotNil(t, got.Interests)
	}
	m := o.GetMetrics()
	assert.Zero(t, m.CacheHits+m.CacheMisses)
	assert.Zero(t, o.GetCacheStats().Size)
}

func TestHealthCheck_Transitions(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpPredictiveAnalytics, mock.Anything).Return(nil, errors.New("down"))

	health := ai.NewHealthTracker(ai.HealthThresholds{UnhealthyAfter: 2, Window: 10, DegradedFailureRate: 0.25})
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Health: health, Retry: fastRetry(0)}, defaultOptions())

	assert.Equal(t, ai.HealthHealthy, o.HealthCheck(context.Background()).Status)

	_, _ = o.PredictLeadOutcome(context.Background(), testLead("l-1"), nil)
	rep := o.HealthCheck(context.Background())
	assert.Equal(t, ai.HealthDegraded, rep.Status)
	assert.Equal(t, 1, rep.Details.Outcomes.ConsecutiveFailures)

	_, _ = o.PredictLeadOutcome(context.Background(), testLead("l-2"), nil)
	rep = o.HealthCheck(context.Background())
	assert.Equal(t, ai.HealthUnhealthy, rep.Status)
	assert.EqualValues(t, 2, rep.Details.Metrics.FailedRequests)
}

func TestHealthCheck_DegradedWhenLimiterSaturated(t *testing.T) {
	t.Parallel()
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpSocialResearch, mock.Anything).Return(json.RawMessage(`{}`), nil)

	limiter := ratelimiter.NewWindowLimiter(ratelimiter.Limits{RequestsPerWindow: 1, Window: time.Hour})
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Limiter: limiter, Retry: fastRetry(0)}, defaultOptions())
	_, err := o.ResearchSocialMedia(context.Background(), testLead("l-1"))
	require.NoError(t, err)

	rep := o.HealthCheck(context.Background())
	assert.Equal(t, ai.HealthDegraded, rep.Status)
	assert.True(t, rep.Details.RateLimit.Saturated)
	assert.Equal(t, "unknown", rep.Details.Provider)
}

func TestDedupInFlight_CollapsesIdenticalCalls(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpSocialResearch, mock.Anything).
		RunAndReturn(func(context.Context, domain.OperationKind, interface{}) (json.RawMessage, error) {
			once.Do(func() { close(entered) })
			<-release
			return json.RawMessage(`{"profiles":[{"platform":"github","handle":"dana"}]}`), nil
		})

	opts := defaultOptions()
	opts.CacheEnabled = false
	opts.DedupInFlight = true
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, opts)

	const n = 5
	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := o.ResearchSocialMedia(context.Background(), testLead("l-1"))
			if err == nil && len(r.Profiles) == 1 {
				ok.Add(1)
			}
		}()
	}
	<-entered
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, n, ok.Load())
	caller.AssertNumberOfCalls(t, "Call", 1)
}

func TestDedupInFlight_WaiterOutlivesCanceledLeader(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	caller := mocks.NewMockOutboundCaller(t)
	caller.EXPECT().Call(mock.Anything, domain.OpSocialResearch, mock.Anything).
		RunAndReturn(func(ctx context.Context, _ domain.OperationKind, _ interface{}) (json.RawMessage, error) {
			once.Do(func() { close(entered) })
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return json.RawMessage(`{"profiles":[{"platform":"github","handle":"dana"}]}`), nil
		}).Once()

	opts := defaultOptions()
	opts.CacheEnabled = false
	opts.DedupInFlight = true
	o := newOrchestrator(t, usecase.Deps{Caller: caller, Retry: fastRetry(0)}, opts)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := o.ResearchSocialMedia(leaderCtx, testLead("l-1"))
		leaderErr <- err
	}()
	<-entered

	type result struct {
		r   domain.SocialResearch
		err error
	}
	follower := make(chan result, 1)
	go func() {
		r, err := o.ResearchSocialMedia(context.Background(), testLead("l-1"))
		follower <- result{r, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-follower
	require.NoError(t, got.err)
	require.Len(t, got.r.Profiles, 1)
	assert.Equal(t, "dana", got.r.Profiles[0].Handle)
}

func TestConcurrentCalls_NeverExceedRequestCeiling(t *testing.T) {
	t.Parallel()
	limiter := ratelimiter.NewWindowLimiter(ratelimiter.Limits{RequestsPerWindow: 10, Window: time.Hour})
	opts := defaultOptions()
	opts.CacheEnabled = false
	o := newOrchestrator(t, usecase.Deps{Caller: stub.New(nil), Limiter: limiter, Retry: fastRetry(0)}, opts)

	var wg sync.WaitGroup
	var admitted, limited atomic.Int32
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.ScoreLeads(context.Background(), []domain.Lead{testLead(fmt.Sprintf("l-%d", i))})
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, domain.ErrRateLimited):
				limited.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 10, admitted.Load())
	assert.EqualValues(t, 15, limited.Load())
	m := o.GetMetrics()
	assert.EqualValues(t, 10, m.TotalRequests)
	assert.EqualValues(t, 15, m.RateLimited)
	assert.Equal(t, "stub", o.HealthCheck(context.Background()).Details.Provider)
}
