package cli

import (
	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/khata-ledger/internal/config"
	"github.com/sheikh-saqib/khata-ledger/internal/logging"
	"github.com/sheikh-saqib/khata-ledger/internal/storage"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema of the configured store",
	Long: `Create or upgrade the tables and indexes of the store selected by
STORE_DRIVER. Safe to run repeatedly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Env, cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := storage.Migrate(cmd.Context(), cfg, logger); err != nil {
			return err
		}
		logger.Info("schema up to date")
		return nil
	},
}
