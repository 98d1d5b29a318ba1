package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/term"

	"digitsweep/pkg/sweep"
)

var (
	// run flags
	runMode           string
	runWorkers        int
	runDelay          string
	runMaxWidth       int
	runStatusInterval string
	runMetricsAddr    string
)

// runCmd sweeps the candidate space
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep the candidate space",
	Long: `Dispatches every candidate without a stored result to the verification
service, in generator order.

Modes:
  - single: one worker, one pass over the whole space, then exit
  - multi:  N workers over disjoint residue classes, passes repeat until
            interrupted

Interrupting (Ctrl-C) stops every worker at its next wait slice; a save
that already started is completed first. A corrupt results document stops
the run with exit status 1 and is left untouched for manual repair.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func applyRunFlags() error {
	if runMode != "" {
		cfg.Sweep.Mode = runMode
	}
	if runWorkers != 0 {
		cfg.Sweep.Workers = runWorkers
	}
	if runDelay != "" {
		cfg.Sweep.Delay = runDelay
	}
	if runMaxWidth != 0 {
		cfg.Sweep.MaxWidth = runMaxWidth
	}
	if runStatusInterval != "" {
		cfg.Sweep.StatusInterval = runStatusInterval
	}
	if runMetricsAddr != "" {
		cfg.Metrics.Addr = runMetricsAddr
	}
	applyStoreFlags(cfg)
	return applyOracleFlags(cfg)
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := applyRunFlags(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("Shutdown requested, finishing in-flight saves", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}()

	observer, err := newRunObserver()
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, observer.registry)
		defer stop()
	}

	out := cmd.OutOrStdout()
	client := newClient(cfg, engineCfg.Mode,
		sweep.WithClientObserver(observer),
		sweep.WithCountdown(countdownPrinter(out)),
	)
	coord := sweep.NewCoordinator(store, client,
		sweep.WithObserver(observer),
		sweep.WithStatusReporter(sweep.WriterReporter(out)),
		sweep.WithStatusInterval(cfg.GetStatusInterval()),
	)

	logger.Info("Starting sweep",
		zap.String("mode", engineCfg.Mode.String()),
		zap.Int("workers", engineCfg.PartitionCount),
		zap.Duration("delay", engineCfg.Delay),
		zap.String("store", cfg.Store.Backend),
		zap.String("endpoint", cfg.Oracle.Endpoint),
	)

	summary, err := coord.Run(ctx, engineCfg)
	if summary != nil {
		printSummary(out, summary)
	}
	if err != nil {
		if sweep.IsCorrupt(err) {
			var corrupt *sweep.CorruptStoreError
			if errors.As(err, &corrupt) {
				fmt.Fprintf(cmd.ErrOrStderr(),
					"The results store at %s is corrupt and was left untouched. Fix or restore it from a backup, then restart.\n",
					corrupt.Resource)
			}
		}
		return err
	}
	return nil
}

// runObserver fans engine events out to the log, Prometheus and
// OpenTelemetry.
type runObserver struct {
	*sweep.MultiObserver
	registry *prometheus.Registry
}

func newRunObserver() (*runObserver, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	otelObs, err := sweep.NewOTelObserver(otel.Tracer("digitsweep"), otel.Meter("digitsweep"))
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry observer: %w", err)
	}

	return &runObserver{
		MultiObserver: &sweep.MultiObserver{Observers: []sweep.Observer{
			sweep.NewZapObserver(logger),
			sweep.NewPrometheusObserver(cfg.Metrics.Namespace, registry),
			otelObs,
		}},
		registry: registry,
	}, nil
}

// serveMetrics exposes registry on addr until the returned stop is called.
func serveMetrics(addr string, registry *prometheus.Registry) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// countdownPrinter shows the remaining rate-limit backoff. On a terminal
// the line is rewritten in place; otherwise a line is printed every ten
// seconds and for the final five.
func countdownPrinter(w io.Writer) func(candidate string, remaining time.Duration) {
	interactive := false
	if f, ok := w.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	var mu sync.Mutex
	return func(candidate string, remaining time.Duration) {
		secs := int(remaining.Round(time.Second) / time.Second)
		mu.Lock()
		defer mu.Unlock()
		switch {
		case interactive:
			fmt.Fprintf(w, "\rRate limited on %s. Retrying in %d seconds... ", candidate, secs)
			if secs <= 1 {
				fmt.Fprintln(w)
			}
		case secs%10 == 0 || secs <= 5:
			fmt.Fprintf(w, "Rate limited on %s. Retrying in %d seconds...\n", candidate, secs)
		}
	}
}

func printSummary(w io.Writer, s *sweep.Summary) {
	state := "finished"
	if s.Interrupted {
		state = "interrupted"
	}
	fmt.Fprintf(w, "Run %s %s after %s: %d dispatched (%d correct, %d incorrect, %d error)\n",
		s.RunID, state, s.Duration.Round(time.Millisecond), s.Dispatched,
		s.ByOutcome[sweep.OutcomeCorrect], s.ByOutcome[sweep.OutcomeIncorrect], s.ByOutcome[sweep.OutcomeError])
}
