package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"digitsweep/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE; tests set it directly
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "digitsweep",
	Short: "Sweep digit strings against a remote verification service",
	Long: `digitsweep enumerates every string of 1 to 9 decimal digits in order
("1".."9", "00".."99", "000".."999", ...), submits each one to a remote
verification service, and records the verdict in a persistent store.

Runs resume from the store: a candidate with a recorded result is never
submitted again. Interrupt with Ctrl-C to stop gracefully.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, err = newLogger(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newLogger builds the process logger. Format "auto" picks the console
// encoder when stderr is a terminal and JSON otherwise.
func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	format := lc.Format
	if format == "" || format == "auto" {
		format = "json"
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "console"
		}
	}

	var zc zap.Config
	switch format {
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}

	level := zapcore.InfoLevel
	if lc.Level != "" {
		parsed, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "digitsweep.yaml", "Path to the YAML configuration file")

	// Store selection is shared by every command
	rootCmd.PersistentFlags().StringVar(&storeBackend, "backend", "", "Store backend: "+strings.Join(config.Backends, ", "))
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Path of the results document (file) or database (sqlite)")
	rootCmd.PersistentFlags().StringVar(&storeDSN, "dsn", "", "Connection string for mysql, postgres and redis backends")

	// run command flags
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "Run mode: single or multi")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "Number of parallel workers (multi mode)")
	runCmd.Flags().StringVar(&runDelay, "delay", "", "Cooldown after each dispatch (e.g. 4s or 4)")
	runCmd.Flags().IntVar(&runMaxWidth, "max-width", 0, "Stop after candidates of this many digits (0 = 9)")
	runCmd.Flags().StringVar(&runStatusInterval, "status-interval", "", "How often to print the status board")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	addOracleFlags(runCmd)

	// probe command flags
	probeCmd.Flags().BoolVarP(&probeForce, "force", "f", false, "Query the service even if a result is stored")
	addOracleFlags(probeCmd)

	// show command flags
	showCmd.Flags().StringVarP(&showOutcome, "outcome", "o", "", "Only show records with this VALUE (CORRECT, INCORRECT, ERROR)")

	// init command flags
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file")
	addOracleFlags(initCmd)

	rootCmd.AddCommand(initCmd, runCmd, probeCmd, showCmd, statsCmd)
}

func addOracleFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&oracleEndpoint, "endpoint", "", "Verification service URL")
	cmd.Flags().StringArrayVarP(&oracleHeaders, "header", "H", nil, "Extra request header as key=value (repeatable)")
	cmd.Flags().StringVar(&oracleRateLimitWait, "rate-limit-wait", "", "Backoff after a rate limit (default 60s single, 300s multi)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
