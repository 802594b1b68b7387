package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/dcf"
	"github.com/sells-group/dealdesk/internal/model"
)

var (
	modelFile        string
	modelAssumptions string
	modelTicker      string
	modelCompany     string
	modelPersist     bool
	modelUser        string
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Run a DCF model from a CSV or XLSX income statement",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("model"); err != nil {
			return err
		}
		statement, err := os.ReadFile(modelFile)
		if err != nil {
			return eris.Wrap(err, "read statement")
		}

		var overrides *model.AssumptionOverrides
		if modelAssumptions != "" {
			overrides = &model.AssumptionOverrides{}
			if err := readYAML(modelAssumptions, overrides); err != nil {
				return err
			}
		}

		if !modelPersist {
			result, err := runModel(statement, overrides)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		}

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		resp, err := dcf.NewService(st).Start(ctx, modelUser, dcf.StartRequest{
			Ticker:      modelTicker,
			CompanyName: modelCompany,
			Assumptions: overrides,
			Statement:   statement,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

// runModel parses and values a statement without touching the store.
func runModel(statement []byte, overrides *model.AssumptionOverrides) (*model.ModelResult, error) {
	history, err := dcf.Parse(statement)
	if err != nil {
		return nil, err
	}
	assumptions := dcf.ApplyDefaults(overrides)
	out, err := dcf.Compute(history, assumptions)
	if err != nil {
		return nil, err
	}
	return &model.ModelResult{
		IncomeTable:      history,
		ForecastedIncome: out.Forecast,
		Assumptions:      assumptions,
		DCF:              out.DCF,
		Checks:           out.Checks,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func init() {
	modelCmd.Flags().StringVarP(&modelFile, "file", "f", "", "CSV or XLSX income statement")
	modelCmd.Flags().StringVar(&modelAssumptions, "assumptions", "", "YAML file of assumption overrides")
	modelCmd.Flags().StringVar(&modelTicker, "ticker", "", "ticker recorded with a persisted run")
	modelCmd.Flags().StringVar(&modelCompany, "company", "", "company name recorded with a persisted run")
	modelCmd.Flags().BoolVar(&modelPersist, "persist", false, "record the run in the store")
	modelCmd.Flags().StringVar(&modelUser, "user", "cli", "owner of a persisted run")
	_ = modelCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(modelCmd)
}
