package research

import (
	"fmt"
	"strings"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/pkg/alphavantage"
)

const systemPrompt = "You are a senior M&A analyst. Always respond with valid JSON only, no markdown formatting."

const responseFormat = `Provide your analysis in the following JSON format ONLY (no markdown, no code blocks, just pure JSON):
{
  "brief": {
    "overview": "2-3 sentence company overview",
    "businessModel": "Description of how the company makes money (2-3 sentences)",
    "financials": "Key financial highlights and health assessment (2-3 sentences)",
    "risks": ["risk 1", "risk 2", "risk 3"],
    "opportunities": ["opportunity 1", "opportunity 2", "opportunity 3"]
  },
  "comparables": [
    {
      "companyName": "Company Name",
      "ticker": "TICK",
      "similarityScore": 85,
      "reasoning": "Brief explanation of why this is a comparable",
      "keyMetrics": {
        "marketCap": "$XXB",
        "peRatio": "XX",
        "sector": "Sector Name"
      }
    }
  ]
}
Return exactly three comparables.`

// BuildPrompt renders the analysis request for one company.
func BuildPrompt(ov *alphavantage.Overview, news []alphavantage.NewsItem) string {
	var b strings.Builder
	b.WriteString("You are a senior M&A analyst. Analyze the following company data and provide a comprehensive analysis.\n\n")
	b.WriteString("COMPANY DATA:\n")
	for _, f := range [][2]string{
		{"Name", ov.Name},
		{"Ticker", ov.Symbol},
		{"Sector", ov.Sector},
		{"Industry", ov.Industry},
		{"Description", ov.Description},
		{"Market Cap", ov.MarketCapitalization},
		{"P/E Ratio", ov.PERatio},
		{"EPS", ov.EPS},
		{"Revenue TTM", ov.RevenueTTM},
		{"Profit Margin", ov.ProfitMargin},
		{"Operating Margin", ov.OperatingMarginTTM},
		{"ROE", ov.ReturnOnEquityTTM},
		{"Beta", ov.Beta},
		{"52-Week High", ov.High52Week},
		{"52-Week Low", ov.Low52Week},
		{"Dividend Yield", ov.DividendYield},
	} {
		fmt.Fprintf(&b, "- %s: %s\n", f[0], f[1])
	}

	b.WriteString("\nRECENT NEWS:\n")
	for _, n := range news {
		fmt.Fprintf(&b, "- %s (Sentiment: %s)\n", n.Title, n.OverallSentimentLabel)
	}
	b.WriteString("\n")
	b.WriteString(responseFormat)
	return b.String()
}

func metrics(ov *alphavantage.Overview) model.CompanyMetrics {
	return model.CompanyMetrics{
		Sector:          ov.Sector,
		Industry:        ov.Industry,
		MarketCap:       ov.MarketCapitalization,
		PERatio:         ov.PERatio,
		EPS:             ov.EPS,
		Revenue:         ov.RevenueTTM,
		ProfitMargin:    ov.ProfitMargin,
		OperatingMargin: ov.OperatingMarginTTM,
		ROE:             ov.ReturnOnEquityTTM,
		Beta:            ov.Beta,
		High52Week:      ov.High52Week,
		Low52Week:       ov.Low52Week,
		DividendYield:   ov.DividendYield,
	}
}
