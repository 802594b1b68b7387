package model

import "time"

// CompanyMetrics is the subset of the Alpha Vantage overview echoed back
// to the caller. Values are kept as the provider's strings.
type CompanyMetrics struct {
	Sector          string `json:"sector"`
	Industry        string `json:"industry"`
	MarketCap       string `json:"marketCap"`
	PERatio         string `json:"peRatio"`
	EPS             string `json:"eps"`
	Revenue         string `json:"revenue"`
	ProfitMargin    string `json:"profitMargin"`
	OperatingMargin string `json:"operatingMargin"`
	ROE             string `json:"roe"`
	Beta            string `json:"beta"`
	High52Week      string `json:"high52Week"`
	Low52Week       string `json:"low52Week"`
	DividendYield   string `json:"dividendYield"`
}

// ResearchBrief is the analyst write-up produced by the LLM.
type ResearchBrief struct {
	Overview      string   `json:"overview"`
	BusinessModel string   `json:"businessModel"`
	Financials    string   `json:"financials"`
	Risks         []string `json:"risks"`
	Opportunities []string `json:"opportunities"`
}

// ComparableMetrics are headline figures for a comparable company.
type ComparableMetrics struct {
	MarketCap string `json:"marketCap"`
	PERatio   string `json:"peRatio"`
	Sector    string `json:"sector"`
}

// Comparable is a peer company suggested by the analysis.
type Comparable struct {
	CompanyName     string            `json:"companyName"`
	Ticker          string            `json:"ticker"`
	SimilarityScore float64           `json:"similarityScore"`
	Reasoning       string            `json:"reasoning"`
	KeyMetrics      ComparableMetrics `json:"keyMetrics"`
}

// ResearchResult is returned by a successful company analysis.
type ResearchResult struct {
	Ticker      string         `json:"ticker"`
	CompanyName string         `json:"companyName"`
	RawData     CompanyMetrics `json:"rawData"`
	Brief       ResearchBrief  `json:"brief"`
	Comparables []Comparable   `json:"comparables"`
	NewsCount   int            `json:"newsCount"`
	AnalyzedAt  time.Time      `json:"analyzedAt"`
	Remaining   int            `json:"remaining"`
}

// ResearchUsage reports a user's research quota.
type ResearchUsage struct {
	Remaining  int        `json:"remaining"`
	Used       int        `json:"used"`
	Max        int        `json:"max"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
}
