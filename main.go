package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fuelsite-cloud/internal/platform/logging"
)

var (
	cfg    config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "fuelsite",
	Short:         "Fuel site cash-box sessions and meter reconciliation",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(env.ToMap(os.Environ()))
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd, statusCmd, auditCmd, relayCmd, snapshotsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
