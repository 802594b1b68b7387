package research

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/pkg/alphavantage"
	"github.com/sells-group/dealdesk/pkg/anthropic"
)

type mockMarket struct {
	mock.Mock
}

func (m *mockMarket) Overview(ctx context.Context, ticker string) (*alphavantage.Overview, error) {
	args := m.Called(ctx, ticker)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*alphavantage.Overview), args.Error(1)
}

func (m *mockMarket) News(ctx context.Context, ticker string, limit int) ([]alphavantage.NewsItem, error) {
	args := m.Called(ctx, ticker, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]alphavantage.NewsItem), args.Error(1)
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s}},
		Usage:   anthropic.TokenUsage{InputTokens: 900, OutputTokens: 300},
	}
}

var acmeOverview = &alphavantage.Overview{
	Symbol:               "ACME",
	Name:                 "Acme Corp",
	Sector:               "Industrials",
	MarketCapitalization: "2000000000",
	RevenueTTM:           "500000000",
	High52Week:           "120",
}

type fixture struct {
	svc    *Service
	store  store.Store
	market *mockMarket
	llm    *mockLLM
}

func newFixture(t *testing.T, guard *resilience.Guard) *fixture {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := &fixture{store: st, market: &mockMarket{}, llm: &mockLLM{}}
	f.svc = NewService(st, f.market, f.llm, guard, Config{CacheTTL: time.Minute})
	f.svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		f.market.AssertExpectations(t)
		f.llm.AssertExpectations(t)
	})
	return f
}

func (f *fixture) expectUpstream(t *testing.T) {
	t.Helper()
	f.market.On("Overview", mock.Anything, "ACME").Return(acmeOverview, nil).Once()
	f.market.On("News", mock.Anything, "ACME", alphavantage.MaxNews).
		Return([]alphavantage.NewsItem{{Title: "Acme beats estimates", OverallSentimentLabel: "Bullish"}}, nil).Once()
	f.llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.System == systemPrompt && req.MaxTokens == defaultMaxTokens && len(req.Messages) == 1
	})).Return(textResponse("```json\n"+validAnalysis+"\n```"), nil).Once()
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t, nil)
	f.expectUpstream(t)

	res, err := f.svc.Analyze(context.Background(), "user-1", " acme ")
	require.NoError(t, err)
	assert.Equal(t, "ACME", res.Ticker)
	assert.Equal(t, "Acme Corp", res.CompanyName)
	assert.Equal(t, "2000000000", res.RawData.MarketCap)
	assert.Equal(t, "500000000", res.RawData.Revenue)
	assert.Equal(t, "120", res.RawData.High52Week)
	assert.Equal(t, "Acme makes anvils.", res.Brief.Overview)
	assert.Len(t, res.Comparables, 1)
	assert.Equal(t, 1, res.NewsCount)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), res.AnalyzedAt)

	u, err := f.svc.Usage(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Used)
	assert.Equal(t, 2, u.Remaining)
	assert.Equal(t, 3, u.Max)
	assert.NotNil(t, u.LastUsedAt)
}

func TestAnalyze_CachedTickerStillChargesQuota(t *testing.T) {
	f := newFixture(t, nil)
	f.expectUpstream(t)
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, "user-1", "ACME")
	require.NoError(t, err)
	res, err := f.svc.Analyze(ctx, "user-2", "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", res.CompanyName)
	assert.Equal(t, 2, res.Remaining)

	res, err = f.svc.Analyze(ctx, "user-1", "ACME")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
}

func TestAnalyze_QuotaExhausted(t *testing.T) {
	f := newFixture(t, nil)
	f.expectUpstream(t)
	ctx := context.Background()

	for range 3 {
		_, err := f.svc.Analyze(ctx, "user-1", "ACME")
		require.NoError(t, err)
	}

	_, err := f.svc.Analyze(ctx, "user-1", "ACME")
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	u, err := f.svc.Usage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.Remaining)
	assert.Equal(t, 3, u.Used)
}

func TestAnalyze_QuotaCheckedBeforeTicker(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	u, err := f.store.CreateUsage(ctx, "user-1", model.UsageResearch)
	require.NoError(t, err)
	for range 3 {
		u, err = f.store.IncrementUsage(ctx, *u)
		require.NoError(t, err)
	}

	_, err = f.svc.Analyze(ctx, "user-1", "not a ticker")
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestAnalyze_InvalidTicker(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Analyze(context.Background(), "user-1", "BRK.B")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	u, err := f.svc.Usage(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.Used)
}

func TestAnalyze_TickerNotFound(t *testing.T) {
	f := newFixture(t, nil)
	f.market.On("Overview", mock.Anything, "ZZZZ").Return(nil, nil).Once()
	f.market.On("News", mock.Anything, "ZZZZ", alphavantage.MaxNews).Return([]alphavantage.NewsItem{}, nil).Once()

	_, err := f.svc.Analyze(context.Background(), "user-1", "zzzz")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ZZZZ", nf.Ticker)
}

func TestAnalyze_RateLimited(t *testing.T) {
	f := newFixture(t, nil)
	f.market.On("Overview", mock.Anything, "ACME").Return(nil, alphavantage.ErrRateLimited).Once()
	f.market.On("News", mock.Anything, "ACME", alphavantage.MaxNews).Return([]alphavantage.NewsItem{}, nil).Maybe()

	_, err := f.svc.Analyze(context.Background(), "user-1", "ACME")
	assert.True(t, eris.Is(err, ErrRateLimited))
	assert.Equal(t, "API rate limit reached. Please try again tomorrow.", ErrRateLimited.Error())
}

func TestAnalyze_NewsFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.market.On("Overview", mock.Anything, "ACME").Return(acmeOverview, nil).Once()
	f.market.On("News", mock.Anything, "ACME", alphavantage.MaxNews).Return(nil, eris.New("boom")).Once()
	f.llm.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(validAnalysis), nil).Once()

	res, err := f.svc.Analyze(context.Background(), "user-1", "ACME")
	require.NoError(t, err)
	assert.Equal(t, 0, res.NewsCount)
}

func TestAnalyze_ParseFailureDoesNotChargeQuota(t *testing.T) {
	f := newFixture(t, nil)
	f.market.On("Overview", mock.Anything, "ACME").Return(acmeOverview, nil).Once()
	f.market.On("News", mock.Anything, "ACME", alphavantage.MaxNews).Return([]alphavantage.NewsItem{}, nil).Once()
	f.llm.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("   "), nil).Once()

	_, err := f.svc.Analyze(context.Background(), "user-1", "ACME")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	u, err := f.svc.Usage(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.Used)
}

func TestAnalyze_RetriesTransientLLMErrors(t *testing.T) {
	guard := resilience.NewGuard(
		resilience.Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
		resilience.BreakerConfig{Threshold: 5, Cooldown: time.Minute},
	)
	f := newFixture(t, guard)
	f.market.On("Overview", mock.Anything, "ACME").Return(acmeOverview, nil).Once()
	f.market.On("News", mock.Anything, "ACME", alphavantage.MaxNews).Return([]alphavantage.NewsItem{}, nil).Once()
	f.llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(eris.New("overloaded"), 529)).Once()
	f.llm.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(validAnalysis), nil).Once()

	res, err := f.svc.Analyze(context.Background(), "user-1", "ACME")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, "closed", guard.Breakers.States()[resilience.ServiceAnthropic])
}

func TestUsage_NewUser(t *testing.T) {
	f := newFixture(t, nil)

	u, err := f.svc.Usage(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, &model.ResearchUsage{Remaining: 3, Used: 0, Max: 3}, u)
}
