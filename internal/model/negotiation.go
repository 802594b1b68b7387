package model

import (
	"encoding/json"
	"time"
)

// Competition captures whether other bidders are known to be in the process.
type Competition string

const (
	CompetitionYes     Competition = "yes"
	CompetitionNo      Competition = "no"
	CompetitionUnknown Competition = "unknown"
)

// EarnoutPreferences are the buyer's preferred earnout mechanics.
type EarnoutPreferences struct {
	Metric string   `json:"metric" yaml:"metric"`
	Period string   `json:"period" yaml:"period"`
	Cap    *float64 `json:"cap,omitempty" yaml:"cap"`
}

// EscrowPreferences are the buyer's preferred escrow mechanics.
type EscrowPreferences struct {
	Percentage     float64 `json:"percentage" yaml:"percentage"`
	DurationMonths int     `json:"duration_months" yaml:"duration_months"`
}

// NegotiationInputs describes the deal a buyer wants scenarios for.
// Numeric fields left at zero fall back to defaults during generation.
type NegotiationInputs struct {
	TargetCompany            string              `json:"target_company" yaml:"target_company"`
	CompanyName              string              `json:"company_name,omitempty" yaml:"company_name"`
	Ticker                   string              `json:"ticker,omitempty" yaml:"ticker"`
	SellerAskPrice           float64             `json:"seller_ask_price" yaml:"seller_ask_price"`
	AcceptablePriceRange     []float64           `json:"acceptable_price_range" yaml:"acceptable_price_range"`
	MaximumCashAtClose       float64             `json:"maximum_cash_at_close" yaml:"maximum_cash_at_close"`
	DesiredCloseDate         string              `json:"desired_close_date,omitempty" yaml:"desired_close_date"`
	MustHaveTerms            []string            `json:"must_have_terms,omitempty" yaml:"must_have_terms"`
	CompetingBidders         Competition         `json:"competing_bidders" yaml:"competing_bidders"`
	CertaintyPriority        *float64            `json:"certainty_priority,omitempty" yaml:"certainty_priority"`
	EarnoutPreferences       *EarnoutPreferences `json:"earnout_preferences,omitempty" yaml:"earnout_preferences"`
	EscrowPreferences        *EscrowPreferences  `json:"escrow_preferences,omitempty" yaml:"escrow_preferences"`
	WorkingCapitalAdjustment string              `json:"working_capital_adjustment,omitempty" yaml:"working_capital_adjustment"`
}

// EarnoutTerms are the earnout mechanics attached to an offer.
type EarnoutTerms struct {
	Metric string  `json:"metric"`
	Period string  `json:"period"`
	Cap    float64 `json:"cap"`
}

// OfferScenario is one generated offer archetype.
type OfferScenario struct {
	Label          string       `json:"label"`
	EquityValue    float64      `json:"equity_value"`
	CashAtClose    float64      `json:"cash_at_close"`
	EarnoutTerms   EarnoutTerms `json:"earnout_terms"`
	EscrowPct      float64      `json:"escrow_pct"`
	WorkingCapital string       `json:"working_capital"`
	AcceptProb     float64      `json:"accept_prob"`
	Rationale      string       `json:"rationale"`
	RiskFlags      []string     `json:"risk_flags"`
	ClosingDays    int          `json:"closing_days"`
}

// Playbook is the negotiating script derived from the generated offers.
type Playbook struct {
	OpeningAnchor     string   `json:"opening_anchor"`
	ExpectedReactions []string `json:"expected_reactions"`
	ConcessionsLadder []string `json:"concessions_ladder"`
	KeyTalkingPoints  []string `json:"key_talking_points"`
}

// BATNA holds each side's best alternative to a negotiated agreement.
type BATNA struct {
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
}

// NegotiationResults is everything produced by one generate call.
type NegotiationResults struct {
	Offers             []OfferScenario  `json:"offers"`
	ZOPA               [2]float64       `json:"zopa"`
	BATNA              BATNA            `json:"batna"`
	Playbook           Playbook         `json:"playbook"`
	Memo               string           `json:"memo"`
	DraftLOI           string           `json:"draft_loi"`
	Revision           int              `json:"revision"`
	RequestedCloseDays int              `json:"requested_close_days"`
	RequiresApproval   bool             `json:"requires_approval"`
	State              NegotiationState `json:"state,omitempty"`
}

// NegotiationState is the approval lifecycle of a negotiation.
type NegotiationState string

const (
	NegotiationDraft           NegotiationState = "draft"
	NegotiationPendingApproval NegotiationState = "pending_approval"
	NegotiationApproved        NegotiationState = "approved"
	NegotiationArchived        NegotiationState = "archived"
)

// CompanyRef identifies the target of a negotiation.
type CompanyRef struct {
	Ticker string `json:"ticker,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Negotiation is the persisted head record of a negotiation.
type Negotiation struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	Company         CompanyRef       `json:"company"`
	CurrentRevision int              `json:"current_revision"`
	State           NegotiationState `json:"state"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NegotiationRevision is an immutable snapshot of inputs and, once
// generated, results.
type NegotiationRevision struct {
	ID            string              `json:"id"`
	NegotiationID string              `json:"negotiation_id"`
	Revision      int                 `json:"revision"`
	Inputs        NegotiationInputs   `json:"inputs"`
	Results       *NegotiationResults `json:"results"`
	RiskFlags     []string            `json:"risk_flags"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ApprovalDecision is the outcome of an approval review.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

// NegotiationApproval records a reviewer's decision on one revision.
type NegotiationApproval struct {
	ID            string           `json:"id"`
	NegotiationID string           `json:"negotiation_id"`
	Revision      int              `json:"revision"`
	UserID        string           `json:"user_id"`
	Decision      ApprovalDecision `json:"decision"`
	Reason        string           `json:"reason"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Audit actions recorded against a negotiation.
const (
	AuditCreate         = "CREATE"
	AuditUpdate         = "UPDATE"
	AuditGenerate       = "GENERATE"
	AuditApproved       = "APPROVED"
	AuditRejected       = "REJECTED"
	AuditArchived       = "ARCHIVED"
	AuditBlockedExtSend = "BLOCKED_EXTERNAL_SEND"
)

// AuditEntry is an append-only log line for negotiation activity.
type AuditEntry struct {
	ID            string          `json:"id"`
	NegotiationID string          `json:"negotiation_id,omitempty"`
	Action        string          `json:"action"`
	Payload       json.RawMessage `json:"payload"`
	UserID        string          `json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ValuationData carries an optional fair-value band from a prior valuation.
type ValuationData struct {
	FairValueLow  float64 `json:"fair_value_low,omitempty" yaml:"fair_value_low"`
	FairValueHigh float64 `json:"fair_value_high,omitempty" yaml:"fair_value_high"`
}
