package model

import "time"

// WorkingCapitalDays holds the receivable, inventory, and payable day counts.
type WorkingCapitalDays struct {
	DSO float64 `json:"dso" yaml:"dso"`
	DIO float64 `json:"dio" yaml:"dio"`
	DPO float64 `json:"dpo" yaml:"dpo"`
}

// FinancialAssumptions drives the DCF forecast. Rates are fractions.
type FinancialAssumptions struct {
	ForecastHorizon     int                `json:"forecastHorizon" yaml:"forecast_horizon"`
	RevenueGrowthRates  []float64          `json:"revenueGrowthRates" yaml:"revenue_growth_rates"`
	OperatingMargin     float64            `json:"operatingMargin" yaml:"operating_margin"`
	TaxRate             float64            `json:"taxRate" yaml:"tax_rate"`
	CapexPercent        float64            `json:"capexPercent" yaml:"capex_percent"`
	DepreciationPercent float64            `json:"depreciationPercent" yaml:"depreciation_percent"`
	WCDays              WorkingCapitalDays `json:"wcDays" yaml:"wc_days"`
	TerminalGrowthRate  float64            `json:"terminalGrowthRate" yaml:"terminal_growth_rate"`
	WACC                float64            `json:"wacc" yaml:"wacc"`
}

// AssumptionOverrides is the caller-supplied form of FinancialAssumptions.
// A nil field means the default applies.
type AssumptionOverrides struct {
	ForecastHorizon     *int                `json:"forecastHorizon,omitempty" yaml:"forecast_horizon"`
	RevenueGrowthRates  []float64           `json:"revenueGrowthRates,omitempty" yaml:"revenue_growth_rates"`
	OperatingMargin     *float64            `json:"operatingMargin,omitempty" yaml:"operating_margin"`
	TaxRate             *float64            `json:"taxRate,omitempty" yaml:"tax_rate"`
	CapexPercent        *float64            `json:"capexPercent,omitempty" yaml:"capex_percent"`
	DepreciationPercent *float64            `json:"depreciationPercent,omitempty" yaml:"depreciation_percent"`
	WCDays              *WorkingCapitalDays `json:"wcDays,omitempty" yaml:"wc_days"`
	TerminalGrowthRate  *float64            `json:"terminalGrowthRate,omitempty" yaml:"terminal_growth_rate"`
	WACC                *float64            `json:"wacc,omitempty" yaml:"wacc"`
}

// FinancialRow is one period of an income statement, historical or forecast.
// Nil fields were not present in the source.
type FinancialRow struct {
	Period       string         `json:"period"`
	Revenue      *float64       `json:"revenue,omitempty"`
	COGS         *float64       `json:"cogs,omitempty"`
	GrossProfit  *float64       `json:"grossProfit,omitempty"`
	Opex         *float64       `json:"opex,omitempty"`
	Depreciation *float64       `json:"depreciation,omitempty"`
	Interest     *float64       `json:"interest,omitempty"`
	Tax          *float64       `json:"tax,omitempty"`
	NetIncome    *float64       `json:"netIncome,omitempty"`
	EBITDA       *float64       `json:"ebitda,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Value dereferences an optional figure, returning 0 when absent.
func Value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// SensitivityCell is one point of the WACC x terminal-growth grid.
type SensitivityCell struct {
	WACC float64 `json:"wacc"`
	TGR  float64 `json:"tgr"`
	EV   float64 `json:"ev"`

	// Undefined marks cells where the adjusted WACC does not exceed the adjusted TGR.
	Undefined bool `json:"undefined,omitempty"`
}

// DCFSummary is the valuation produced for one set of assumptions.
type DCFSummary struct {
	NPV                     float64             `json:"npv"`
	WACC                    float64             `json:"wacc"`
	TerminalValue           float64             `json:"terminalValue"`
	DiscountedTerminalValue float64             `json:"discountedTerminalValue"`
	PVExplicitFCF           float64             `json:"pvExplicitFcf"`
	EnterpriseValue         float64             `json:"enterpriseValue"`
	FreeCashFlows           []float64           `json:"freeCashFlows"`
	SensitivityMatrix       [][]SensitivityCell `json:"sensitivityMatrix"`
}

// ModelChecks records non-fatal data problems found while modelling.
type ModelChecks struct {
	Balanced bool     `json:"balanced"`
	Warnings []string `json:"warnings"`
}

// Provenance identifies what produced a model result.
type Provenance struct {
	Ticker       string    `json:"ticker"`
	CompanyName  string    `json:"company_name,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
	AgentVersion string    `json:"agent_version"`
}

// ModelResult is the full output stored against a completed model run.
type ModelResult struct {
	IncomeTable      []FinancialRow       `json:"income_table"`
	ForecastedIncome []FinancialRow       `json:"forecasted_income"`
	Assumptions      FinancialAssumptions `json:"assumptions"`
	DCF              DCFSummary           `json:"dcf"`
	Checks           ModelChecks          `json:"checks"`
	Provenance       Provenance           `json:"provenance"`
}

// ModelRunStatus represents the lifecycle state of a financial model run.
type ModelRunStatus string

const (
	ModelRunQueued     ModelRunStatus = "queued"
	ModelRunParsing    ModelRunStatus = "parsing"
	ModelRunValidating ModelRunStatus = "validating"
	ModelRunModelling  ModelRunStatus = "modelling"
	ModelRunGenerating ModelRunStatus = "generating"
	ModelRunDone       ModelRunStatus = "done"
	ModelRunFailed     ModelRunStatus = "failed"
)

// ModelRun is a single execution of the DCF engine for a user.
type ModelRun struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	Ticker        string               `json:"ticker"`
	CompanyName   string               `json:"company_name,omitempty"`
	FiscalYearEnd string               `json:"fiscal_year_end,omitempty"`
	Currency      string               `json:"currency"`
	WorkflowID    string               `json:"workflow_id,omitempty"`
	Assumptions   *AssumptionOverrides `json:"assumptions,omitempty"`
	Status        ModelRunStatus       `json:"status"`
	ErrorText     string               `json:"error_text,omitempty"`
	Result        *ModelResult         `json:"result_json,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
}

// ModelRunSummary is the projection of a run used by history listings.
type ModelRunSummary struct {
	ID          string         `json:"id"`
	Ticker      string         `json:"ticker"`
	CompanyName string         `json:"company_name,omitempty"`
	Status      ModelRunStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DCFSummary  *DCFSummary    `json:"dcf_summary,omitempty"`
}

// ModelAudit is an append-only record written after each completed run.
type ModelAudit struct {
	ID               string    `json:"id"`
	RunID            string    `json:"run_id"`
	PromptVersion    string    `json:"prompt_version"`
	AgentVersionHash string    `json:"agent_version_hash"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
}
