// Package cli implements the khata command line.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "khata",
	Short: "Credit-book ledger service",
	Long: `khata records goods given to and payments received from a shop
owner's customers and keeps each customer's due and advance balances.

Configuration comes from the environment (optionally a .env file) and the
TOML file named by KHATA_CONFIG.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
