package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"digitsweep/pkg/sweep"
)

var (
	probeForce  bool
	showOutcome string
)

// probeCmd checks a single value
var probeCmd = &cobra.Command{
	Use:   "probe <digits>",
	Short: "Verify one value and store the result",
	Long: `Looks the value up in the store and prints the stored result. If there is
none (or --force is given) the verification service is asked and the answer
is merged into the store.

The value must be 1 to 9 decimal digits; leading zeros are significant.`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

// showCmd lists stored results
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored results in canonical order",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

// statsCmd summarizes the store
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count stored results by VALUE and report coverage",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runProbe(cmd *cobra.Command, args []string) error {
	applyStoreFlags(cfg)
	if err := applyOracleFlags(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	client := newClient(cfg, sweep.ModeSingle,
		sweep.WithClientObserver(sweep.NewZapObserver(logger)),
		sweep.WithCountdown(countdownPrinter(cmd.OutOrStdout())),
	)

	res, err := sweep.Probe(ctx, store, client, args[0], probeForce)
	if err != nil {
		return err
	}

	logger.Debug("Probe complete",
		zap.String("candidate", res.Record.Candidate),
		zap.String("value", res.Record.Outcome.String()),
		zap.Bool("cached", res.Cached),
	)

	fmt.Fprintln(cmd.OutOrStdout(), sweep.FormatRecord(res.Record))
	if res.Cached {
		fmt.Fprintln(cmd.OutOrStdout(), "(stored result; use --force to ask again)")
	}
	return nil
}

func loadRecords(ctx context.Context) (sweep.Records, error) {
	applyStoreFlags(cfg)
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	return store.Load(ctx)
}

func runShow(cmd *cobra.Command, args []string) error {
	filter := -1
	if showOutcome != "" {
		o, err := sweep.ParseOutcome(showOutcome)
		if err != nil {
			return err
		}
		filter = int(o)
	}

	records, err := loadRecords(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	shown := 0
	for _, key := range records.SortedKeys() {
		rec := records[key]
		if filter >= 0 && int(rec.Outcome) != filter {
			continue
		}
		if shown > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, sweep.FormatRecord(rec))
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(out, "No results stored.")
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	records, err := loadRecords(cmd.Context())
	if err != nil {
		return err
	}

	maxWidth := cfg.Sweep.MaxWidth
	if maxWidth <= 0 || maxWidth > sweep.MaxWidth {
		maxWidth = sweep.MaxWidth
	}
	var space uint64
	for w := 1; w <= maxWidth; w++ {
		space += sweep.CountForWidth(w)
	}

	var covered uint64
	for key := range records {
		if inSweepSpace(key, maxWidth) {
			covered++
		}
	}

	counts := records.CountByOutcome()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Stored results:\t%d\n", len(records))
	for _, o := range []sweep.Outcome{sweep.OutcomeCorrect, sweep.OutcomeIncorrect, sweep.OutcomeError} {
		fmt.Fprintf(tw, "  %s:\t%d\n", o, counts[o])
	}
	fmt.Fprintf(tw, "Coverage (width 1-%d):\t%d / %d (%.6f%%)\n",
		maxWidth, covered, space, 100*float64(covered)/float64(space))
	return tw.Flush()
}

// inSweepSpace reports whether key is a candidate the generator produces
// within maxWidth digits. Probed values such as "0" are stored but lie
// outside it.
func inSweepSpace(key string, maxWidth int) bool {
	c, err := sweep.ParseCandidate(key)
	if err != nil || c.Width > maxWidth {
		return false
	}
	return c.Width > 1 || c.Value > 0
}
