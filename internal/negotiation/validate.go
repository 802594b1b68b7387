package negotiation

import (
	"fmt"

	"github.com/sells-group/dealdesk/internal/model"
)

// ValidationError reports a malformed negotiation request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("negotiation: invalid %s: %s", e.Field, e.Message)
}

// Validate checks inputs before generation. Zero values are allowed and take
// their defaults.
func Validate(in model.NegotiationInputs) error {
	if in.SellerAskPrice < 0 {
		return &ValidationError{Field: "seller_ask_price", Message: "must not be negative"}
	}
	if in.MaximumCashAtClose < 0 {
		return &ValidationError{Field: "maximum_cash_at_close", Message: "must not be negative"}
	}
	switch len(in.AcceptablePriceRange) {
	case 0:
	case 2:
		if in.AcceptablePriceRange[0] < 0 || in.AcceptablePriceRange[0] > in.AcceptablePriceRange[1] {
			return &ValidationError{Field: "acceptable_price_range", Message: "must be [low, high] with 0 <= low <= high"}
		}
	default:
		return &ValidationError{Field: "acceptable_price_range", Message: "must have exactly two values"}
	}
	if c := in.CertaintyPriority; c != nil && (*c < 0 || *c > 10) {
		return &ValidationError{Field: "certainty_priority", Message: "must be between 0 and 10"}
	}
	switch in.CompetingBidders {
	case "", model.CompetitionYes, model.CompetitionNo, model.CompetitionUnknown:
	default:
		return &ValidationError{Field: "competing_bidders", Message: "must be yes, no, or unknown"}
	}
	if in.DesiredCloseDate != "" {
		if _, ok := parseDate(in.DesiredCloseDate); !ok {
			return &ValidationError{Field: "desired_close_date", Message: "must be YYYY-MM-DD or RFC 3339"}
		}
	}
	if e := in.EscrowPreferences; e != nil && (e.Percentage < 0 || e.Percentage > 100) {
		return &ValidationError{Field: "escrow_preferences.percentage", Message: "must be between 0 and 100"}
	}
	return nil
}
