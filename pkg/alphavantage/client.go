// Package alphavantage is a minimal client for the Alpha Vantage company
// overview and news sentiment endpoints.
package alphavantage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealdesk/internal/resilience"
)

const (
	defaultBaseURL    = "https://www.alphavantage.co"
	defaultRatePerMin = 5

	// MaxNews is the most news items ever returned.
	MaxNews = 5
)

// ErrRateLimited is returned when the provider answers with a throttling
// note instead of data.
var ErrRateLimited = eris.New("API rate limit reached. Please try again tomorrow.")

// Client reads company data from Alpha Vantage.
type Client interface {
	// Overview returns the company overview, or nil when the symbol is unknown.
	Overview(ctx context.Context, ticker string) (*Overview, error)
	// News returns up to limit recent articles. Throttling yields an empty list.
	News(ctx context.Context, ticker string, limit int) ([]NewsItem, error)
}

// Overview is the OVERVIEW payload. Alpha Vantage reports every value as a string.
type Overview struct {
	Symbol               string `json:"Symbol"`
	Name                 string `json:"Name"`
	Description          string `json:"Description"`
	Exchange             string `json:"Exchange"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
	PERatio              string `json:"PERatio"`
	DividendYield        string `json:"DividendYield"`
	EPS                  string `json:"EPS"`
	RevenueTTM           string `json:"RevenueTTM"`
	ProfitMargin         string `json:"ProfitMargin"`
	OperatingMarginTTM   string `json:"OperatingMarginTTM"`
	ReturnOnEquityTTM    string `json:"ReturnOnEquityTTM"`
	Beta                 string `json:"Beta"`
	High52Week           string `json:"52WeekHigh"`
	Low52Week            string `json:"52WeekLow"`

	Note string `json:"Note"`
}

// NewsItem is one NEWS_SENTIMENT feed entry.
type NewsItem struct {
	Title                 string `json:"title"`
	Summary               string `json:"summary"`
	Source                string `json:"source"`
	TimePublished         string `json:"time_published"`
	OverallSentimentLabel string `json:"overall_sentiment_label"`
}

type newsResponse struct {
	Feed []NewsItem `json:"feed"`
	Note string     `json:"Note"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRatePerMinute sets the request budget. Zero or negative disables limiting.
func WithRatePerMinute(n int) Option {
	return func(c *httpClient) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Alpha Vantage client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	WithRatePerMinute(defaultRatePerMin)(c)
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Overview(ctx context.Context, ticker string) (*Overview, error) {
	var ov Overview
	if err := c.query(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {ticker}}, &ov); err != nil {
		return nil, eris.Wrap(err, "alphavantage: overview")
	}
	if ov.Note != "" {
		return nil, ErrRateLimited
	}
	if ov.Symbol == "" {
		return nil, nil
	}
	return &ov, nil
}

func (c *httpClient) News(ctx context.Context, ticker string, limit int) ([]NewsItem, error) {
	if limit <= 0 || limit > MaxNews {
		limit = MaxNews
	}
	var resp newsResponse
	params := url.Values{
		"function": {"NEWS_SENTIMENT"},
		"tickers":  {ticker},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := c.query(ctx, params, &resp); err != nil {
		return nil, eris.Wrap(err, "alphavantage: news")
	}
	if resp.Note != "" || len(resp.Feed) == 0 {
		return []NewsItem{}, nil
	}
	if len(resp.Feed) > limit {
		resp.Feed = resp.Feed[:limit]
	}
	return resp.Feed, nil
}

func (c *httpClient) query(ctx context.Context, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "wait for rate limiter")
	}

	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "send request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
