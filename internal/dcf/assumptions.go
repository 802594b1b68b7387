package dcf

import (
	"fmt"

	"github.com/sells-group/dealdesk/internal/model"
)

// DefaultAssumptions are applied to any field the caller leaves unset.
func DefaultAssumptions() model.FinancialAssumptions {
	return model.FinancialAssumptions{
		ForecastHorizon:     5,
		RevenueGrowthRates:  []float64{0.05, 0.05, 0.04, 0.04, 0.03},
		OperatingMargin:     0.15,
		TaxRate:             0.25,
		CapexPercent:        0.05,
		DepreciationPercent: 0.03,
		WCDays:              model.WorkingCapitalDays{DSO: 45, DIO: 60, DPO: 30},
		TerminalGrowthRate:  0.025,
		WACC:                0.10,
	}
}

// ApplyDefaults resolves overrides against DefaultAssumptions. Explicit zero
// values are kept; only nil fields (and an empty growth array) take the default.
func ApplyDefaults(o *model.AssumptionOverrides) model.FinancialAssumptions {
	a := DefaultAssumptions()
	if o == nil {
		return a
	}
	if o.ForecastHorizon != nil {
		a.ForecastHorizon = *o.ForecastHorizon
	}
	if len(o.RevenueGrowthRates) > 0 {
		a.RevenueGrowthRates = append([]float64(nil), o.RevenueGrowthRates...)
	}
	if o.OperatingMargin != nil {
		a.OperatingMargin = *o.OperatingMargin
	}
	if o.TaxRate != nil {
		a.TaxRate = *o.TaxRate
	}
	if o.CapexPercent != nil {
		a.CapexPercent = *o.CapexPercent
	}
	if o.DepreciationPercent != nil {
		a.DepreciationPercent = *o.DepreciationPercent
	}
	if o.WCDays != nil {
		a.WCDays = *o.WCDays
	}
	if o.TerminalGrowthRate != nil {
		a.TerminalGrowthRate = *o.TerminalGrowthRate
	}
	if o.WACC != nil {
		a.WACC = *o.WACC
	}
	return a
}

// ValidationError reports an assumption that cannot be modelled.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dcf: invalid %s: %s", e.Field, e.Message)
}

// Validate checks the assumptions before any computation runs.
func Validate(a model.FinancialAssumptions) error {
	if a.ForecastHorizon < 1 {
		return &ValidationError{Field: "forecastHorizon", Message: "must be at least 1"}
	}

	rates := []struct {
		field string
		v     float64
	}{
		{"operatingMargin", a.OperatingMargin},
		{"taxRate", a.TaxRate},
		{"capexPercent", a.CapexPercent},
		{"depreciationPercent", a.DepreciationPercent},
		{"terminalGrowthRate", a.TerminalGrowthRate},
		{"wacc", a.WACC},
	}
	for _, r := range rates {
		if r.v < 0 || r.v > 1 {
			return &ValidationError{Field: r.field, Message: fmt.Sprintf("%g is outside [0, 1]", r.v)}
		}
	}

	for i, g := range a.RevenueGrowthRates {
		if g <= -1 {
			return &ValidationError{
				Field:   fmt.Sprintf("revenueGrowthRates[%d]", i),
				Message: fmt.Sprintf("%g would drive revenue to zero or below", g),
			}
		}
	}

	if a.WCDays.DSO < 0 || a.WCDays.DIO < 0 || a.WCDays.DPO < 0 {
		return &ValidationError{Field: "wcDays", Message: "day counts cannot be negative"}
	}

	if a.WACC <= a.TerminalGrowthRate {
		return &ValidationError{
			Field:   "wacc",
			Message: fmt.Sprintf("%g must exceed terminal growth rate %g", a.WACC, a.TerminalGrowthRate),
		}
	}
	return nil
}
