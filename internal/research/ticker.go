package research

import (
	"fmt"
	"strings"
)

const maxTickerLen = 5

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError is returned when the market data provider has no such symbol.
type NotFoundError struct {
	Ticker string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Ticker %q not found. Please check the symbol and try again.", e.Ticker)
}

// NormalizeTicker trims and upper-cases raw, then requires 1-5 letters A-Z.
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return "", &ValidationError{Field: "ticker", Message: "Invalid ticker provided"}
	}
	if len(t) > maxTickerLen || strings.IndexFunc(t, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
		return "", &ValidationError{
			Field:   "ticker",
			Message: "Invalid ticker format. Use uppercase letters only, max 5 characters.",
		}
	}
	return t, nil
}
