package negotiation

import "math"

// Risk flag texts attached to offers.
const (
	FlagBelowFairValue = "Below fair value floor"
	FlagEarnoutDispute = "Earnout dispute risk"
	FlagHighEscrow     = "High escrow may deter seller"
	FlagLowAcceptance  = "LOW acceptance probability"

	lowAcceptanceThreshold = 0.4
)

// Offer describes the terms scored by AcceptanceProbability.
type Offer struct {
	Price          float64
	SellerAsk      float64
	CashPercent    float64
	EscrowPercent  float64
	ClosingDays    int
	HasCompetition bool
	Certainty      float64
}

// AcceptanceProbability estimates how likely the seller is to accept an
// offer. The result is clamped to [0,1] and not rounded.
func AcceptanceProbability(o Offer) float64 {
	score := 0.5

	ratio := o.Price / o.SellerAsk
	switch {
	case ratio >= 1:
		score += 0.2
	case ratio >= 0.95:
		score += 0.15
	case ratio >= 0.9:
		score += 0.1
	case ratio >= 0.85:
		score += 0.05
	default:
		score -= 0.1
	}

	switch {
	case o.CashPercent >= 80:
		score += 0.1
	case o.CashPercent >= 60:
		score += 0.05
	default:
		score -= 0.05
	}

	switch {
	case o.EscrowPercent <= 5:
		score += 0.05
	case o.EscrowPercent <= 10:
		score += 0.02
	default:
		score -= 0.05
	}

	switch {
	case o.ClosingDays <= 30:
		score += 0.08
	case o.ClosingDays <= 60:
		score += 0.04
	case o.ClosingDays <= 90:
		score += 0.02
	default:
		score -= 0.05
	}

	if o.HasCompetition {
		score -= 0.05
	}
	score += o.Certainty / 10 * 0.05

	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(1, score))
}

// RiskFlags returns the flags raised by an offer, in a fixed order.
func RiskFlags(equity, fairLow float64, p Params, prob float64) []string {
	flags := []string{}
	if equity < fairLow*0.9 {
		flags = append(flags, FlagBelowFairValue)
	}
	if p.EarnoutPct > 20 {
		flags = append(flags, FlagEarnoutDispute)
	}
	if p.EscrowPct > 12 {
		flags = append(flags, FlagHighEscrow)
	}
	if prob < lowAcceptanceThreshold {
		flags = append(flags, FlagLowAcceptance)
	}
	return flags
}

func round(x float64) float64 { return math.Floor(x + 0.5) }

func round2(x float64) float64 { return round(x*100) / 100 }
