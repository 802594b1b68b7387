// Package negotiation generates offer scenarios, negotiation artifacts, and
// drives the approval state machine for a negotiation.
package negotiation

// Archetype is one of the four fixed offer postures.
type Archetype int

// Offer archetypes, from the lowest price to the highest certainty of close.
const (
	Aggressive Archetype = iota
	Balanced
	Defensive
	MaximumCertainty
)

// Archetypes lists every archetype in the order offers are generated.
var Archetypes = []Archetype{Aggressive, Balanced, Defensive, MaximumCertainty}

// Params are the static deal terms of an archetype. Percentages are whole
// numbers (60 means 60%).
type Params struct {
	Label        string
	CashPercent  float64
	EarnoutPct   float64
	EscrowPct    float64
	ClosingDays  int
	equityFactor float64
}

var archetypeParams = map[Archetype]Params{
	Aggressive:       {Label: "Aggressive", CashPercent: 60, EarnoutPct: 25, EscrowPct: 15, ClosingDays: 45, equityFactor: 0.92},
	Balanced:         {Label: "Balanced", CashPercent: 75, EarnoutPct: 15, EscrowPct: 10, ClosingDays: 60},
	Defensive:        {Label: "Defensive", CashPercent: 85, EarnoutPct: 10, EscrowPct: 7, ClosingDays: 75, equityFactor: 0.98},
	MaximumCertainty: {Label: "Maximum Certainty", CashPercent: 95, EarnoutPct: 5, EscrowPct: 5, ClosingDays: 90, equityFactor: 1.02},
}

// Params returns the static terms for a.
func (a Archetype) Params() Params { return archetypeParams[a] }

func (a Archetype) String() string { return archetypeParams[a].Label }

// equity computes the headline equity value for the archetype given the fair
// value band and the seller's ask.
func (a Archetype) equity(b band) float64 {
	p := archetypeParams[a]
	switch a {
	case Aggressive:
		return round(b.low * p.equityFactor)
	case Balanced:
		return round((b.low + b.high) / 2)
	case Defensive:
		return round(b.high * p.equityFactor)
	default:
		return round(b.ask * p.equityFactor)
	}
}
