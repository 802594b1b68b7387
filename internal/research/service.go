// Package research produces AI-assisted company briefs from Alpha Vantage
// data, metered by a per-user quota.
package research

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/internal/store"
	"github.com/sells-group/dealdesk/pkg/alphavantage"
	"github.com/sells-group/dealdesk/pkg/anthropic"
)

const (
	defaultMaxUses   = 3
	defaultMaxTokens = 2000
	defaultModel     = "claude-sonnet-4-5-20250929"
)

var (
	// ErrQuotaExhausted is returned once a user has spent every analysis.
	ErrQuotaExhausted = eris.New("Research quota exhausted. You have used all 3 research analyses.")
	// ErrRateLimited is the market data provider's throttling error.
	ErrRateLimited = alphavantage.ErrRateLimited
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = eris.New("Empty AI response")
)

// Config tunes the research service.
type Config struct {
	MaxUses   int
	CacheTTL  time.Duration
	Model     string
	MaxTokens int64
	NewsLimit int
}

// Service runs company analyses.
type Service struct {
	store  store.Store
	market alphavantage.Client
	llm    anthropic.Client
	guard  *resilience.Guard
	cache  *cache.Cache
	cfg    Config
	now    func() time.Time
}

// analysis is what gets cached per ticker; quota is charged on every call.
type analysis struct {
	companyName string
	metrics     model.CompanyMetrics
	brief       model.ResearchBrief
	comparables []model.Comparable
	newsCount   int
}

// NewService creates a Service. A nil guard calls upstream directly.
func NewService(st store.Store, market alphavantage.Client, llm anthropic.Client, guard *resilience.Guard, cfg Config) *Service {
	if cfg.MaxUses <= 0 {
		cfg.MaxUses = defaultMaxUses
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.NewsLimit <= 0 || cfg.NewsLimit > alphavantage.MaxNews {
		cfg.NewsLimit = alphavantage.MaxNews
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		store:  st,
		market: market,
		llm:    llm,
		guard:  guard,
		cache:  cache.New(ttl, 2*ttl),
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Analyze checks the quota, validates the ticker, builds the brief, and
// charges one use with a compare-and-swap on the usage counter.
func (s *Service) Analyze(ctx context.Context, userID, rawTicker string) (*model.ResearchResult, error) {
	usage, err := store.GetOrCreateUsage(ctx, s.store, userID, model.UsageResearch)
	if err != nil {
		return nil, eris.Wrap(err, "research: load usage")
	}
	if s.cfg.MaxUses-usage.UsageCount <= 0 {
		zap.L().Info("research: quota exhausted", zap.String("user_id", userID))
		return nil, ErrQuotaExhausted
	}

	ticker, err := NormalizeTicker(rawTicker)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("user_id", userID), zap.String("ticker", ticker))

	a, err := s.analysis(ctx, ticker)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.IncrementUsage(ctx, *usage)
	if err != nil {
		return nil, eris.Wrap(err, "research: charge usage")
	}
	remaining := max(s.cfg.MaxUses-updated.UsageCount, 0)

	log.Info("research analysis complete", zap.Int("remaining", remaining))

	return &model.ResearchResult{
		Ticker:      ticker,
		CompanyName: a.companyName,
		RawData:     a.metrics,
		Brief:       a.brief,
		Comparables: a.comparables,
		NewsCount:   a.newsCount,
		AnalyzedAt:  s.now(),
		Remaining:   remaining,
	}, nil
}

// Usage reports the caller's research quota.
func (s *Service) Usage(ctx context.Context, userID string) (*model.ResearchUsage, error) {
	u, err := store.GetOrCreateUsage(ctx, s.store, userID, model.UsageResearch)
	if err != nil {
		return nil, eris.Wrap(err, "research: usage")
	}
	return &model.ResearchUsage{
		Remaining:  max(s.cfg.MaxUses-u.UsageCount, 0),
		Used:       u.UsageCount,
		Max:        s.cfg.MaxUses,
		LastUsedAt: u.LastUsedAt,
	}, nil
}

func (s *Service) analysis(ctx context.Context, ticker string) (*analysis, error) {
	if v, ok := s.cache.Get(ticker); ok {
		zap.L().Debug("research: cache hit", zap.String("ticker", ticker))
		return v.(*analysis), nil
	}

	ov, news, err := s.fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}

	parsed, err := s.analyze(ctx, ov, news)
	if err != nil {
		return nil, err
	}

	a := &analysis{
		companyName: ov.Name,
		metrics:     metrics(ov),
		brief:       parsed.Brief,
		comparables: parsed.Comparables,
		newsCount:   len(news),
	}
	s.cache.SetDefault(ticker, a)
	return a, nil
}

// fetch loads the overview and news concurrently. News is best effort.
func (s *Service) fetch(ctx context.Context, ticker string) (*alphavantage.Overview, []alphavantage.NewsItem, error) {
	var (
		ov   *alphavantage.Overview
		news []alphavantage.NewsItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ov, err = resilience.Call(gctx, s.guard, resilience.ServiceAlphaVantage, "overview",
			func(ctx context.Context) (*alphavantage.Overview, error) {
				return s.market.Overview(ctx, ticker)
			})
		return err
	})
	g.Go(func() error {
		items, err := resilience.Call(gctx, s.guard, resilience.ServiceAlphaVantage, "news",
			func(ctx context.Context) ([]alphavantage.NewsItem, error) {
				return s.market.News(ctx, ticker, s.cfg.NewsLimit)
			})
		if err != nil {
			zap.L().Warn("research: news fetch failed", zap.String("ticker", ticker), zap.Error(err))
			items = nil
		}
		news = items
		return nil
	})
	if err := g.Wait(); err != nil {
		if eris.Is(err, ErrRateLimited) {
			return nil, nil, ErrRateLimited
		}
		return nil, nil, eris.Wrap(err, "research: fetch company data")
	}

	if ov == nil {
		return nil, nil, &NotFoundError{Ticker: ticker}
	}
	if news == nil {
		news = []alphavantage.NewsItem{}
	}
	if len(news) > s.cfg.NewsLimit {
		news = news[:s.cfg.NewsLimit]
	}
	return ov, news, nil
}

func (s *Service) analyze(ctx context.Context, ov *alphavantage.Overview, news []alphavantage.NewsItem) (*Analysis, error) {
	req := anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: BuildPrompt(ov, news)}},
	}
	resp, err := resilience.Call(ctx, s.guard, resilience.ServiceAnthropic, "analyze",
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return s.llm.CreateMessage(ctx, req)
		})
	if err != nil {
		return nil, eris.Wrap(err, "research: analyze")
	}
	resp.Usage.LogCost(s.cfg.Model, "research")

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return ParseAnalysis(text)
}
