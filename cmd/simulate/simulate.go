// Package simulate implements the command that feeds synthetic telemetry
// through the detection pipeline, for demos and local testing.
package simulate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinelfs/ransomwatch/internal/conf"
	"github.com/sentinelfs/ransomwatch/internal/datastore"
	"github.com/sentinelfs/ransomwatch/internal/detection"
	"github.com/sentinelfs/ransomwatch/internal/errors"
	"github.com/sentinelfs/ransomwatch/internal/ingest"
	"github.com/sentinelfs/ransomwatch/internal/logging"
	"github.com/sentinelfs/ransomwatch/internal/notification"
	"github.com/sentinelfs/ransomwatch/internal/simulator"
)

// Command creates the simulate command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		count    int
		demo     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate synthetic telemetry events",
		Long: "Generate synthetic file activity telemetry and run it through the " +
			"regular classification pipeline. With --interval the generator keeps " +
			"producing batches until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings, count, demo, interval)
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "Number of events per batch")
	cmd.Flags().BoolVar(&demo, "demo", false, "Process events even while monitoring is disabled")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Delay between batches (0 runs a single batch)")

	return cmd
}

func run(settings *conf.Settings, count int, demo bool, interval time.Duration) error {
	logger := logging.ForService("simulate")

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no output database enabled in configuration")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close datastore", "error", err)
		}
	}()

	notifier := notification.NewNotifier(nil)
	pipeline := ingest.NewPipeline(store, nil, notifier, nil)
	defer notifier.Wait()

	gen := simulator.New()
	opts := ingest.Options{BypassMonitoringGate: demo}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		stored, err := runBatch(pipeline, gen, count, opts)
		if err != nil {
			if errors.Is(err, ingest.ErrMonitoringDisabled) {
				fmt.Println("Monitoring is disabled, no events generated (use --demo to override)")
				return nil
			}
			return err
		}
		logger.Info("generated telemetry events", "count", stored)

		if interval <= 0 {
			return nil
		}
		select {
		case <-quit:
			return nil
		case <-time.After(interval):
		}
	}
}

func runBatch(pipeline *ingest.Pipeline, gen *simulator.Generator, count int, opts ingest.Options) (int, error) {
	stored := 0
	for _, sample := range gen.GenerateBatch(count) {
		raw := &detection.RawEvent{
			ProcessName:  sample.ProcessName,
			FilePath:     sample.FilePath,
			EventType:    sample.EventType,
			EntropyScore: sample.EntropyScore,
			RenameCount:  sample.RenameCount,
		}
		if _, err := pipeline.Ingest(context.Background(), raw, opts); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}
