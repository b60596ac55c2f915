package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/otj-helper/internal/config"
	"github.com/jonathan/otj-helper/internal/recurrence"
	"github.com/jonathan/otj-helper/internal/types"
)

var recurCmd = &cobra.Command{
	Use:   "recur",
	Short: "Generate today's activities from recurring templates",
	RunE:  runRecur,
}

var recurDate string

func init() {
	recurCmd.Flags().StringVar(&recurDate, "date", "", "Date to generate for, YYYY-MM-DD (default: today)")
	rootCmd.AddCommand(recurCmd)
}

func runRecur(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	day := types.NewDate(time.Now())
	if recurDate != "" {
		if day, err = types.ParseDate(recurDate); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.db.Close()

	created, err := recurrence.NewGenerator(st.db, nil).Run(ctx, day)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Generated %d activities for %s\n", created, day)
	return err
}
