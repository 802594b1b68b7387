package negotiation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/model"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func baseInputs() model.NegotiationInputs {
	return model.NegotiationInputs{
		CompanyName:          "Acme Corp",
		SellerAskPrice:       100_000_000,
		AcceptablePriceRange: []float64{85_000_000, 105_000_000},
	}
}

func TestGenerateOffers_ReferenceDeal(t *testing.T) {
	offers := GenerateOffers(baseInputs(), model.ValuationData{}, fixedNow)
	require.Len(t, offers, 4)

	tests := []struct {
		label   string
		equity  float64
		cash    float64
		cap     float64
		escrow  float64
		days    int
		prob    float64
		flags   []string
		ratePct string
	}{
		{"Aggressive", 78_200_000, 46_920_000, 19_550_000, 15, 45, 0.47, []string{FlagEarnoutDispute, FlagHighEscrow}, "78% of ask with 60%"},
		{"Balanced", 95_000_000, 71_250_000, 14_250_000, 10, 60, 0.79, []string{}, "95% of ask with 75%"},
		{"Defensive", 102_900_000, 87_465_000, 10_290_000, 7, 75, 0.87, []string{}, "103% of ask with 85%"},
		{"Maximum Certainty", 102_000_000, 96_900_000, 5_100_000, 5, 90, 0.90, []string{}, "102% of ask with 95%"},
	}
	for i, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			o := offers[i]
			assert.Equal(t, tt.label, o.Label)
			assert.Equal(t, tt.equity, o.EquityValue)
			assert.Equal(t, tt.cash, o.CashAtClose)
			assert.Equal(t, tt.cap, o.EarnoutTerms.Cap)
			assert.Equal(t, "EBITDA", o.EarnoutTerms.Metric)
			assert.Equal(t, "2y", o.EarnoutTerms.Period)
			assert.Equal(t, tt.escrow, o.EscrowPct)
			assert.Equal(t, tt.days, o.ClosingDays)
			assert.Equal(t, "peg + true-up", o.WorkingCapital)
			assert.InDelta(t, tt.prob, o.AcceptProb, 1e-9)
			assert.Equal(t, tt.flags, o.RiskFlags)
			assert.Contains(t, o.Rationale, tt.ratePct)
		})
	}
	assert.Equal(t, "Aggressive offer at 78% of ask with 60% cash.", offers[0].Rationale)
}

func TestGenerateOffers_Defaults(t *testing.T) {
	offers := GenerateOffers(model.NegotiationInputs{}, model.ValuationData{}, fixedNow)
	require.Len(t, offers, 4)

	// Ask defaults to 100M and the range to [0.85, 1.05] of ask.
	assert.Equal(t, float64(78_200_000), offers[0].EquityValue)
	assert.Equal(t, float64(95_000_000), offers[1].EquityValue)
	assert.Equal(t, float64(102_900_000), offers[2].EquityValue)
	assert.Equal(t, float64(102_000_000), offers[3].EquityValue)
}

func TestGenerateOffers_CashCappedAtMaximum(t *testing.T) {
	in := baseInputs()
	in.MaximumCashAtClose = 50_000_000
	offers := GenerateOffers(in, model.ValuationData{}, fixedNow)
	for _, o := range offers[1:] {
		assert.Equal(t, float64(50_000_000), o.CashAtClose, o.Label)
	}
	assert.Equal(t, float64(46_920_000), offers[0].CashAtClose)
}

func TestGenerateOffers_Preferences(t *testing.T) {
	in := baseInputs()
	in.EarnoutPreferences = &model.EarnoutPreferences{Metric: "Revenue", Period: "3y"}
	in.WorkingCapitalAdjustment = "locked box"
	offers := GenerateOffers(in, model.ValuationData{}, fixedNow)
	assert.Equal(t, "Revenue", offers[0].EarnoutTerms.Metric)
	assert.Equal(t, "3y", offers[0].EarnoutTerms.Period)
	assert.Equal(t, "locked box", offers[2].WorkingCapital)
}

func TestGenerateOffers_FairValueBand(t *testing.T) {
	offers := GenerateOffers(baseInputs(), model.ValuationData{FairValueLow: 150_000_000, FairValueHigh: 160_000_000}, fixedNow)

	assert.Equal(t, float64(138_000_000), offers[0].EquityValue)
	assert.Equal(t, float64(155_000_000), offers[1].EquityValue)
	assert.Equal(t, float64(156_800_000), offers[2].EquityValue)
	// Maximum Certainty tracks the ask and falls below the fair value floor.
	assert.Equal(t, float64(102_000_000), offers[3].EquityValue)
	assert.Contains(t, offers[3].RiskFlags, FlagBelowFairValue)
	assert.NotContains(t, offers[0].RiskFlags, FlagBelowFairValue)
}

func TestGenerateOffers_CompetitionLowersAcceptance(t *testing.T) {
	in := baseInputs()
	in.CompetingBidders = model.CompetitionYes
	in.CertaintyPriority = model.Float(1)

	offers := GenerateOffers(in, model.ValuationData{}, fixedNow)
	assert.Contains(t, offers[0].RiskFlags, FlagLowAcceptance)
	assert.Less(t, offers[0].AcceptProb, 0.41)
	for _, o := range offers[1:] {
		assert.NotContains(t, o.RiskFlags, FlagLowAcceptance, o.Label)
	}
}

func TestGenerateOffers_ExplicitZeroCertainty(t *testing.T) {
	in := baseInputs()
	in.CertaintyPriority = model.Float(0)
	offers := GenerateOffers(in, model.ValuationData{}, fixedNow)
	assert.InDelta(t, 0.44, offers[0].AcceptProb, 1e-9)
}

func TestGenerate_ApprovalAndArtifacts(t *testing.T) {
	res := Generate(baseInputs(), model.ValuationData{}, fixedNow)
	require.Len(t, res.Offers, 4)
	assert.False(t, res.RequiresApproval)
	assert.Equal(t, [2]float64{85_000_000, 100_000_000}, res.ZOPA)
	assert.Equal(t, defaultCloseDays, res.RequestedCloseDays)
	assert.NotEmpty(t, res.Memo)
	assert.NotEmpty(t, res.DraftLOI)
	assert.Equal(t, buyerBATNA, res.BATNA.Buyer)

	in := baseInputs()
	in.CompetingBidders = model.CompetitionYes
	in.CertaintyPriority = model.Float(1)
	assert.True(t, Generate(in, model.ValuationData{}, fixedNow).RequiresApproval)
}

func TestCloseDays(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 60},
		{"not a date", 60},
		{"2025-07-01", 30},
		{"2025-06-02T12:00:00Z", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, closeDays(tt.in, fixedNow), tt.in)
	}
}

func TestUniqueFlags(t *testing.T) {
	offers := []model.OfferScenario{
		{RiskFlags: []string{FlagEarnoutDispute, FlagHighEscrow}},
		{RiskFlags: []string{FlagHighEscrow, FlagLowAcceptance}},
		{},
	}
	assert.Equal(t, []string{FlagEarnoutDispute, FlagHighEscrow, FlagLowAcceptance}, UniqueFlags(offers))
	assert.NotNil(t, UniqueFlags(nil))
}

func TestRequiresApproval(t *testing.T) {
	assert.False(t, RequiresApproval([]string{FlagEarnoutDispute, FlagHighEscrow}))
	assert.True(t, RequiresApproval([]string{FlagLowAcceptance}))
	assert.True(t, RequiresApproval([]string{FlagBelowFairValue}))
	assert.False(t, RequiresApproval(nil))
}
