// Package dcf implements the deterministic discounted-cash-flow engine, the
// historical statement parser, and the model-run service built on them.
package dcf

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/model"
)

const (
	// baseRevenueFallback is used when the latest historical row has no revenue.
	baseRevenueFallback = 1_000_000
	// defaultGrowth applies when no growth rates are configured at all.
	defaultGrowth = 0.05
	// grossMarginSpread is the gross margin above operating margin; opex takes it back.
	grossMarginSpread = 0.10
	// workingCapitalShare of the year-over-year revenue change is tied up in working capital.
	workingCapitalShare = 0.10

	warnMissingRevenue = "Missing revenue data in historical financials"
)

var (
	waccDeltas = [3]float64{-0.01, 0, 0.01}
	tgrDeltas  = [3]float64{-0.005, 0, 0.005}
)

// ErrNoRows is returned when there is no historical data to model.
var ErrNoRows = eris.New("Failed to parse CSV data")

// Output is the result of Compute.
type Output struct {
	Forecast []model.FinancialRow
	DCF      model.DCFSummary
	Checks   model.ModelChecks
}

// Compute runs the forecast and valuation over historical rows (most recent
// last). Assumptions must already have defaults applied.
func Compute(history []model.FinancialRow, a model.FinancialAssumptions) (*Output, error) {
	if len(history) == 0 {
		return nil, ErrNoRows
	}
	if err := Validate(a); err != nil {
		return nil, err
	}

	warnings := []string{}

	base := model.Value(history[len(history)-1].Revenue)
	if base == 0 {
		warnings = append(warnings, warnMissingRevenue)
		base = baseRevenueFallback
	}

	forecast := Forecast(base, a)
	fcfs := FreeCashFlows(forecast, a)

	pv := presentValue(fcfs, a.WACC)
	tv := terminalValue(fcfs[len(fcfs)-1], a.WACC, a.TerminalGrowthRate)
	discTV := tv / math.Pow(1+a.WACC, float64(a.ForecastHorizon))
	ev := pv + discTV

	matrix, cellWarnings := sensitivity(fcfs, a)
	warnings = append(warnings, cellWarnings...)

	return &Output{
		Forecast: forecast,
		DCF: model.DCFSummary{
			NPV:                     roundHalfUp(ev),
			WACC:                    a.WACC,
			TerminalValue:           roundHalfUp(tv),
			DiscountedTerminalValue: roundHalfUp(discTV),
			PVExplicitFCF:           roundHalfUp(pv),
			EnterpriseValue:         roundHalfUp(ev),
			FreeCashFlows:           fcfs,
			SensitivityMatrix:       matrix,
		},
		Checks: model.ModelChecks{
			Balanced: len(warnings) == 0,
			Warnings: warnings,
		},
	}, nil
}

// GrowthRate returns the growth applied in forecast year t (1-based).
func GrowthRate(rates []float64, t int) float64 {
	switch {
	case t-1 < len(rates):
		return rates[t-1]
	case len(rates) > 0:
		return rates[0]
	default:
		return defaultGrowth
	}
}

// Forecast projects the income statement for each year of the horizon,
// rounding every line to whole currency units.
func Forecast(baseRevenue float64, a model.FinancialAssumptions) []model.FinancialRow {
	rows := make([]model.FinancialRow, 0, a.ForecastHorizon)
	revenue := baseRevenue
	for t := 1; t <= a.ForecastHorizon; t++ {
		revenue *= 1 + GrowthRate(a.RevenueGrowthRates, t)

		cogs := revenue * (1 - a.OperatingMargin - grossMarginSpread)
		gross := revenue - cogs
		opex := revenue * grossMarginSpread
		dep := revenue * a.DepreciationPercent
		ebitda := gross - opex + dep
		ebit := ebitda - dep
		interest := 0.0
		tax := (ebit - interest) * a.TaxRate
		net := ebit - interest - tax

		rows = append(rows, model.FinancialRow{
			Period:       fmt.Sprintf("FY+%d", t),
			Revenue:      model.Float(roundHalfUp(revenue)),
			COGS:         model.Float(roundHalfUp(cogs)),
			GrossProfit:  model.Float(roundHalfUp(gross)),
			Opex:         model.Float(roundHalfUp(opex)),
			Depreciation: model.Float(roundHalfUp(dep)),
			EBITDA:       model.Float(roundHalfUp(ebitda)),
			Interest:     model.Float(roundHalfUp(interest)),
			Tax:          model.Float(roundHalfUp(tax)),
			NetIncome:    model.Float(roundHalfUp(net)),
		})
	}
	return rows
}

// FreeCashFlows derives unlevered free cash flow from forecast rows.
func FreeCashFlows(forecast []model.FinancialRow, a model.FinancialAssumptions) []float64 {
	fcfs := make([]float64, len(forecast))
	for i, row := range forecast {
		revenue := model.Value(row.Revenue)
		dep := model.Value(row.Depreciation)
		ebit := model.Value(row.EBITDA) - dep
		nopat := ebit * (1 - a.TaxRate)
		capex := revenue * a.CapexPercent

		var dwc float64
		if i > 0 {
			dwc = (revenue - model.Value(forecast[i-1].Revenue)) * workingCapitalShare
		}
		fcfs[i] = nopat + dep - capex - dwc
	}
	return fcfs
}

func presentValue(fcfs []float64, wacc float64) float64 {
	var sum float64
	factor := 1.0
	for _, fcf := range fcfs {
		factor *= 1 + wacc
		sum += fcf / factor
	}
	return sum
}

// terminalValue is the Gordon growth value at the end of the horizon.
func terminalValue(lastFCF, wacc, tgr float64) float64 {
	return lastFCF * (1 + tgr) / (wacc - tgr)
}

func enterpriseValue(fcfs []float64, wacc, tgr float64) float64 {
	tv := terminalValue(fcfs[len(fcfs)-1], wacc, tgr)
	return presentValue(fcfs, wacc) + tv/math.Pow(1+wacc, float64(len(fcfs)))
}

// sensitivity builds the 3x3 grid with WACC varying by row and TGR by column.
func sensitivity(fcfs []float64, a model.FinancialAssumptions) ([][]model.SensitivityCell, []string) {
	var warnings []string
	matrix := make([][]model.SensitivityCell, len(waccDeltas))
	for i, dw := range waccDeltas {
		matrix[i] = make([]model.SensitivityCell, len(tgrDeltas))
		for j, dg := range tgrDeltas {
			wacc := a.WACC + dw
			tgr := a.TerminalGrowthRate + dg
			cell := model.SensitivityCell{WACC: roundRate(wacc), TGR: roundRate(tgr)}
			if wacc <= tgr {
				cell.Undefined = true
				warnings = append(warnings, fmt.Sprintf(
					"Sensitivity undefined at WACC %.2f%% and terminal growth %.2f%%", wacc*100, tgr*100))
			} else {
				cell.EV = roundHalfUp(enterpriseValue(fcfs, wacc, tgr))
			}
			matrix[i][j] = cell
		}
	}
	return matrix, warnings
}

// roundHalfUp rounds to the nearest whole unit with halves going up.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

// roundRate trims float noise from adjusted rates for display.
func roundRate(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}
