package negotiation

import (
	"math"
	"strings"
	"time"

	"github.com/sells-group/dealdesk/internal/model"
)

const (
	defaultSellerAsk      = 100_000_000
	defaultCertainty      = 5
	defaultCloseDays      = 60
	defaultEarnoutMetric  = "EBITDA"
	defaultEarnoutPeriod  = "2y"
	defaultWorkingCapital = "peg + true-up"
)

// band is the resolved pricing context for one generation.
type band struct {
	ask       float64
	priceLow  float64
	priceHigh float64
	low       float64 // fair value low, falls back to priceLow
	high      float64 // fair value high, falls back to priceHigh
	fairHigh  float64 // as supplied, zero when absent
	maxCash   float64
	certainty float64
	closeDays int
	compete   bool
}

func resolve(in model.NegotiationInputs, v model.ValuationData, now time.Time) band {
	b := band{ask: in.SellerAskPrice}
	if b.ask == 0 {
		b.ask = defaultSellerAsk
	}
	if len(in.AcceptablePriceRange) == 2 {
		b.priceLow, b.priceHigh = in.AcceptablePriceRange[0], in.AcceptablePriceRange[1]
	} else {
		b.priceLow, b.priceHigh = b.ask*0.85, b.ask*1.05
	}
	b.maxCash = in.MaximumCashAtClose
	if b.maxCash == 0 {
		b.maxCash = b.ask
	}
	b.certainty = defaultCertainty
	if in.CertaintyPriority != nil {
		b.certainty = *in.CertaintyPriority
	}
	b.closeDays = closeDays(in.DesiredCloseDate, now)
	b.compete = in.CompetingBidders == model.CompetitionYes

	b.low, b.high = b.priceLow, b.priceHigh
	if v.FairValueLow != 0 {
		b.low = v.FairValueLow
	}
	if v.FairValueHigh != 0 {
		b.high = v.FairValueHigh
		b.fairHigh = v.FairValueHigh
	}
	return b
}

// closeDays returns whole days from now until the desired close date,
// rounded up. Unset or unparseable dates use the default.
func closeDays(desired string, now time.Time) int {
	t, ok := parseDate(desired)
	if !ok {
		return defaultCloseDays
	}
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// GenerateOffers builds one scenario per archetype.
func GenerateOffers(in model.NegotiationInputs, v model.ValuationData, now time.Time) []model.OfferScenario {
	return buildOffers(in, resolve(in, v, now))
}

func buildOffers(in model.NegotiationInputs, b band) []model.OfferScenario {
	metric, period := defaultEarnoutMetric, defaultEarnoutPeriod
	if ep := in.EarnoutPreferences; ep != nil {
		if ep.Metric != "" {
			metric = ep.Metric
		}
		if ep.Period != "" {
			period = ep.Period
		}
	}
	wc := in.WorkingCapitalAdjustment
	if wc == "" {
		wc = defaultWorkingCapital
	}

	out := make([]model.OfferScenario, 0, len(Archetypes))
	for _, a := range Archetypes {
		p := a.Params()
		equity := a.equity(b)
		prob := AcceptanceProbability(Offer{
			Price:          equity,
			SellerAsk:      b.ask,
			CashPercent:    p.CashPercent,
			EscrowPercent:  p.EscrowPct,
			ClosingDays:    p.ClosingDays,
			HasCompetition: b.compete,
			Certainty:      b.certainty,
		})

		out = append(out, model.OfferScenario{
			Label:       p.Label,
			EquityValue: equity,
			CashAtClose: math.Min(b.maxCash, round(equity*p.CashPercent/100)),
			EarnoutTerms: model.EarnoutTerms{
				Metric: metric,
				Period: period,
				Cap:    round(equity * p.EarnoutPct / 100),
			},
			EscrowPct:      p.EscrowPct,
			WorkingCapital: wc,
			AcceptProb:     round2(prob),
			Rationale:      rationale(p, equity, b.ask),
			RiskFlags:      RiskFlags(equity, b.low, p, prob),
			ClosingDays:    p.ClosingDays,
		})
	}
	return out
}

// Generate produces offers and every derived artifact. Revision and state
// are left for the caller to assign.
func Generate(in model.NegotiationInputs, v model.ValuationData, now time.Time) model.NegotiationResults {
	b := resolve(in, v, now)
	offers := buildOffers(in, b)
	flags := UniqueFlags(offers)

	return model.NegotiationResults{
		Offers:             offers,
		ZOPA:               zopa(b),
		BATNA:              batna(),
		Playbook:           playbook(b, offers),
		Memo:               memo(in, offers, flags, now),
		DraftLOI:           draftLOI(in, offers, now),
		RequestedCloseDays: b.closeDays,
		RequiresApproval:   RequiresApproval(flags),
	}
}

// UniqueFlags collects risk flags across offers in first-seen order.
func UniqueFlags(offers []model.OfferScenario) []string {
	seen := make(map[string]bool)
	flags := []string{}
	for _, o := range offers {
		for _, f := range o.RiskFlags {
			if !seen[f] {
				seen[f] = true
				flags = append(flags, f)
			}
		}
	}
	return flags
}

// RequiresApproval reports whether any flag marks a high-risk revision.
func RequiresApproval(flags []string) bool {
	for _, f := range flags {
		if strings.Contains(f, "LOW") || strings.Contains(f, "Below fair") {
			return true
		}
	}
	return false
}

// balanced returns the Balanced offer, or the second offer if none is labelled.
func balanced(offers []model.OfferScenario) model.OfferScenario {
	for _, o := range offers {
		if o.Label == Balanced.String() {
			return o
		}
	}
	return offers[1]
}
