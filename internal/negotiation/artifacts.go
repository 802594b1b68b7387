package negotiation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sells-group/dealdesk/internal/model"
)

const (
	buyerBATNA  = "Walk away and pursue alternative targets. Estimated search cost: 3-6 months, $500K in advisory fees."
	sellerBATNA = "Continue operating independently or pursue other suitors. Risk of market timing if delayed."

	loiBanner = "════════════════════════════════════════════\n" +
		"⚠️  INTERNAL DRAFT — NOT A LEGAL OFFER  ⚠️\n" +
		"════════════════════════════════════════════\n"

	defaultCompanyName = "Target Company"
)

var printer = message.NewPrinter(language.English)

// FormatCurrency renders an amount as $X.XB, $X.XM, or a grouped dollar figure.
func FormatCurrency(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("$%.1fB", tenths(v/1e9))
	case v >= 1e6:
		return fmt.Sprintf("$%.1fM", tenths(v/1e6))
	default:
		return "$" + printer.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
	}
}

// tenths rounds half up to one decimal place.
func tenths(v float64) float64 { return math.Floor(v*10+0.5) / 10 }

func percent(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func pctOfAsk(equity, ask float64) int { return int(math.Round(equity / ask * 100)) }

func rationale(p Params, equity, ask float64) string {
	return fmt.Sprintf("%s offer at %d%% of ask with %s%% cash.", p.Label, pctOfAsk(equity, ask), percent(p.CashPercent))
}

func zopa(b band) [2]float64 {
	high := b.ask
	if b.fairHigh != 0 {
		high = b.fairHigh
	}
	return [2]float64{round(b.low), round(math.Min(b.ask*1.05, high))}
}

func batna() model.BATNA {
	return model.BATNA{Buyer: buyerBATNA, Seller: sellerBATNA}
}

func playbook(b band, offers []model.OfferScenario) model.Playbook {
	open := offers[0]
	bal := balanced(offers)
	return model.Playbook{
		OpeningAnchor: fmt.Sprintf("Open at %s (%d%% of ask) to establish negotiating room.",
			FormatCurrency(open.EquityValue), pctOfAsk(open.EquityValue, b.ask)),
		ExpectedReactions: []string{
			"Seller likely to counter at or near ask price",
			"Expect pushback on earnout structure and escrow percentage",
			"Working capital adjustment methodology will be contested",
		},
		ConcessionsLadder: []string{
			fmt.Sprintf("Step 1: Move to %s if seller shows flexibility", FormatCurrency(bal.EquityValue)),
			fmt.Sprintf("Step 2: Increase cash at close to %s", FormatCurrency(bal.CashAtClose)),
			fmt.Sprintf("Step 3: Reduce escrow to %s%% as final concession", percent(bal.EscrowPct-2)),
			"Step 4: Agree to accelerated close timeline if at ceiling price",
		},
		KeyTalkingPoints: []string{
			"Emphasize certainty of close and track record",
			"Highlight synergy opportunities post-close",
			"Reference comparable transaction multiples",
			"Discuss earnout structure as alignment mechanism",
		},
	}
}

func companyName(in model.NegotiationInputs) string {
	switch {
	case in.CompanyName != "":
		return in.CompanyName
	case in.TargetCompany != "":
		return in.TargetCompany
	default:
		return defaultCompanyName
	}
}

func memo(in model.NegotiationInputs, offers []model.OfferScenario, flags []string, now time.Time) string {
	bal := balanced(offers)
	var low, high float64
	if len(in.AcceptablePriceRange) > 0 {
		low = in.AcceptablePriceRange[0]
	}
	if len(in.AcceptablePriceRange) > 1 {
		high = in.AcceptablePriceRange[1]
	}
	competition := "Unknown/None - leverage for concessions"
	if in.CompetingBidders == model.CompetitionYes {
		competition = "Yes - proceed with urgency"
	}

	var sb strings.Builder
	sb.WriteString("**Internal Negotiation Memo**\n\n")
	fmt.Fprintf(&sb, "**Target:** %s\n", companyName(in))
	fmt.Fprintf(&sb, "**Date:** %s\n\n", now.UTC().Format(time.DateOnly))
	sb.WriteString("**Recommended Approach:**\n")
	fmt.Fprintf(&sb, "We recommend opening with the Aggressive scenario at %s to establish negotiating room, with authority to move to the Balanced scenario at %s.\n\n",
		FormatCurrency(offers[0].EquityValue), FormatCurrency(bal.EquityValue))
	sb.WriteString("**Key Considerations:**\n")
	fmt.Fprintf(&sb, "- Seller asking price: %s\n", FormatCurrency(in.SellerAskPrice))
	fmt.Fprintf(&sb, "- Our acceptable range: %s - %s\n", FormatCurrency(low), FormatCurrency(high))
	fmt.Fprintf(&sb, "- Competition: %s\n\n", competition)
	sb.WriteString("**Risk Flags:**\n")
	lines := make([]string, len(flags))
	for i, f := range flags {
		lines[i] = "- " + f
	}
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n")
	return sb.String()
}

func draftLOI(in model.NegotiationInputs, offers []model.OfferScenario, now time.Time) string {
	bal := balanced(offers)
	company := companyName(in)

	var sb strings.Builder
	sb.WriteString(loiBanner)
	sb.WriteString("\nLETTER OF INTENT\n\n")
	fmt.Fprintf(&sb, "Date: %s\n\n", now.UTC().Format(time.DateOnly))
	fmt.Fprintf(&sb, "Re: Proposed Acquisition of %s\n\n", company)
	sb.WriteString("Dear [Seller Representative],\n\n")
	fmt.Fprintf(&sb, "We are pleased to submit this non-binding Letter of Intent for the proposed acquisition of %s (the \"Company\").\n\n", company)
	sb.WriteString("1. PURCHASE PRICE\n")
	fmt.Fprintf(&sb, "   Total Enterprise Value: %s\n   \n", FormatCurrency(bal.EquityValue))
	sb.WriteString("2. CONSIDERATION\n")
	fmt.Fprintf(&sb, "   - Cash at Closing: %s\n", FormatCurrency(bal.CashAtClose))
	fmt.Fprintf(&sb, "   - Earnout: Up to %s based on %s targets over %s\n   \n",
		FormatCurrency(bal.EarnoutTerms.Cap), bal.EarnoutTerms.Metric, bal.EarnoutTerms.Period)
	sb.WriteString("3. ESCROW\n")
	fmt.Fprintf(&sb, "   %s%% of purchase price held for 18 months for indemnification claims\n\n", percent(bal.EscrowPct))
	sb.WriteString("4. WORKING CAPITAL\n")
	fmt.Fprintf(&sb, "   Adjustment: %s\n\n", bal.WorkingCapital)
	sb.WriteString("5. DUE DILIGENCE\n")
	sb.WriteString("   45-day exclusivity period for confirmatory due diligence\n\n")
	sb.WriteString("6. CLOSING\n")
	fmt.Fprintf(&sb, "   Target closing within %d days of signing definitive agreement\n\n", bal.ClosingDays)
	sb.WriteString("This letter is non-binding except for confidentiality and exclusivity provisions.\n\n")
	sb.WriteString(loiBanner)
	return sb.String()
}
