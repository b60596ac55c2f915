// Package main provides the entry point for the OTJ Helper server and its maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "otj_helper",
	Short:        "OTJ Helper apprenticeship tracker",
	Long:         "OTJ Helper records off-the-job training activity against apprenticeship standards and reports which KSBs still lack evidence.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
