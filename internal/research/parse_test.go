package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/pkg/alphavantage"
)

const validAnalysis = `{
  "brief": {
    "overview": "Acme makes anvils.",
    "businessModel": "Sells anvils.",
    "financials": "Healthy.",
    "risks": ["coyotes"],
    "opportunities": ["roadrunners"]
  },
  "comparables": [
    {"companyName": "Wile Corp", "ticker": "WILE", "similarityScore": 85, "reasoning": "Also anvils",
     "keyMetrics": {"marketCap": "$2B", "peRatio": "14", "sector": "Industrials"}}
  ]
}`

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripFences(in), in)
	}
}

func TestParseAnalysis_Strict(t *testing.T) {
	a, err := ParseAnalysis("```json\n" + validAnalysis + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Acme makes anvils.", a.Brief.Overview)
	assert.Equal(t, []string{"coyotes"}, a.Brief.Risks)
	require.Len(t, a.Comparables, 1)
	assert.Equal(t, "WILE", a.Comparables[0].Ticker)
	assert.Equal(t, 85.0, a.Comparables[0].SimilarityScore)
	assert.Equal(t, "$2B", a.Comparables[0].KeyMetrics.MarketCap)
}

func TestParseAnalysis_Repaired(t *testing.T) {
	// Trailing commas and single quotes.
	raw := `{'brief': {'overview': 'Acme', 'risks': ['a', 'b',],}, 'comparables': [],}`
	a, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, "Acme", a.Brief.Overview)
	assert.Equal(t, []string{"a", "b"}, a.Brief.Risks)
	assert.NotNil(t, a.Brief.Opportunities)
	assert.NotNil(t, a.Comparables)
}

func TestParseAnalysis_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "```json\n```"} {
		_, err := ParseAnalysis(raw)
		assert.ErrorIs(t, err, ErrParse, raw)
	}
}

func TestBuildPrompt(t *testing.T) {
	ov := &alphavantage.Overview{Symbol: "ACME", Name: "Acme Corp", Sector: "Industrials", High52Week: "120"}
	news := []alphavantage.NewsItem{{Title: "Acme beats estimates", OverallSentimentLabel: "Bullish"}}

	p := BuildPrompt(ov, news)
	assert.Contains(t, p, "- Name: Acme Corp\n")
	assert.Contains(t, p, "- Ticker: ACME\n")
	assert.Contains(t, p, "- 52-Week High: 120\n")
	assert.Contains(t, p, "- Acme beats estimates (Sentiment: Bullish)\n")
	assert.Contains(t, p, `"comparables"`)
}
