package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dealdesk/internal/model"
	"github.com/sells-group/dealdesk/internal/negotiation"
)

var (
	negotiateInputs    string
	negotiateValuation string
	negotiateFormat    string
)

var negotiateCmd = &cobra.Command{
	Use:   "negotiate",
	Short: "Generate offer scenarios, memo, and draft LOI from deal inputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("negotiate"); err != nil {
			return err
		}

		var in model.NegotiationInputs
		if err := readYAML(negotiateInputs, &in); err != nil {
			return err
		}
		var v model.ValuationData
		if negotiateValuation != "" {
			if err := readYAML(negotiateValuation, &v); err != nil {
				return err
			}
		}
		if err := negotiation.Validate(in); err != nil {
			return err
		}

		res := negotiation.Generate(in, v, time.Now().UTC())
		out := cmd.OutOrStdout()
		switch negotiateFormat {
		case "json":
			return printJSON(out, res)
		case "memo":
			_, err := fmt.Fprint(out, res.Memo)
			return eris.Wrap(err, "write memo")
		case "loi":
			_, err := fmt.Fprint(out, res.DraftLOI)
			return eris.Wrap(err, "write loi")
		default:
			return eris.Errorf("unknown format %q (want json, memo, or loi)", negotiateFormat)
		}
	},
}

func init() {
	negotiateCmd.Flags().StringVarP(&negotiateInputs, "inputs", "i", "", "YAML or JSON deal inputs")
	negotiateCmd.Flags().StringVar(&negotiateValuation, "valuation", "", "YAML or JSON fair value band")
	negotiateCmd.Flags().StringVar(&negotiateFormat, "format", "json", "output: json, memo, or loi")
	_ = negotiateCmd.MarkFlagRequired("inputs")
	rootCmd.AddCommand(negotiateCmd)
}
