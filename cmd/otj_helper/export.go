package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/otj-helper/internal/config"
	"github.com/jonathan/otj-helper/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's activities as CSV",
	RunE:  runExport,
}

var (
	exportEmail string
	exportOut   string
)

func init() {
	exportCmd.Flags().StringVarP(&exportEmail, "email", "e", "", "Email of the apprentice (required)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: stdout)")

	if err := exportCmd.MarkFlagRequired("email"); err != nil {
		panic(fmt.Sprintf("failed to mark email flag as required: %v", err))
	}

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
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

	user, err := st.userByEmail(ctx, exportEmail)
	if err != nil {
		return err
	}
	activities, err := st.db.ListAllActivities(ctx, user.ID)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := export.WriteActivitiesCSV(w, activities); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	if exportOut != "" {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d activities to %s\n", len(activities), exportOut)
	}
	return nil
}
