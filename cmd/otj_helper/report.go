package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/otj-helper/internal/config"
	"github.com/jonathan/otj-helper/internal/gaps"
	"github.com/jonathan/otj-helper/internal/observability"
	"github.com/jonathan/otj-helper/internal/schemas"
	schemafiles "github.com/jonathan/otj-helper/schemas"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the gap analysis for a user",
	Long:  "Runs the gap analysis for one apprentice against their selected standard (or --spec) and prints it. With --json the report is validated against the embedded report schema before it is written.",
	RunE:  runReport,
}

var (
	reportEmail string
	reportSpec  string
	reportJSON  bool
)

func init() {
	reportCmd.Flags().StringVarP(&reportEmail, "email", "e", "", "Email of the apprentice (required)")
	reportCmd.Flags().StringVar(&reportSpec, "spec", "", "Standard code (default: the user's selected standard)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Write the report as JSON")

	if err := reportCmd.MarkFlagRequired("email"); err != nil {
		panic(fmt.Sprintf("failed to mark email flag as required: %v", err))
	}

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.db.Close()

	user, err := st.userByEmail(ctx, reportEmail)
	if err != nil {
		return err
	}

	spec := reportSpec
	if spec == "" {
		spec = user.Spec()
	}
	if spec == "" {
		return fmt.Errorf("user %s has not selected a standard; pass --spec", user.Email)
	}
	if !st.catalog.Has(spec) {
		return fmt.Errorf("unknown standard %q", spec)
	}

	report, err := gaps.NewAnalyser(st.db).Analyse(ctx, user.ID, spec)
	if err != nil {
		return fmt.Errorf("failed to analyse gaps: %w", err)
	}

	out := cmd.OutOrStdout()
	if !reportJSON {
		observability.NewPrinter(out).PrintGapReport(report)
		return nil
	}

	if err := schemas.Validate(schemafiles.GapReport, report); err != nil {
		return fmt.Errorf("report failed schema validation: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
