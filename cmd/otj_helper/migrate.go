package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/otj-helper/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed KSB definitions",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.db.Close()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Database: %s\n", st.db.Dialect())
	_, _ = fmt.Fprintf(out, "Migrations: applied=%d skipped=%d (schema version %d)\n",
		st.migrations.Applied, st.migrations.Skipped, st.migrations.Version)
	_, _ = fmt.Fprintf(out, "KSBs seeded: %d\n", st.seeded)
	return nil
}
