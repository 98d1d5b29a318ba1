package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"digitsweep/internal/config"
)

var initForce bool

// initCmd writes a configuration file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file",
	Long: `Writes the default configuration, with any --endpoint, --header and store
flags applied, to the path given by --config. No verification service is
built in, so --endpoint is required unless DIGITSWEEP_ENDPOINT is set.

Example:
  digitsweep init --endpoint https://verify.example.com/ -H X-Time-Badge=secret`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if config.Exists(configPath) && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	applyStoreFlags(cfg)
	if err := applyOracleFlags(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}

	logger.Debug("Configuration written", zap.String("path", configPath))
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}
