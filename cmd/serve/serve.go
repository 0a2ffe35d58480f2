// Package serve implements the command that runs the detection engine: it
// opens the datastore, wires the ingestion pipeline, and serves the HTTP API
// until interrupted.
package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sentinelfs/ransomwatch/internal/api"
	"github.com/sentinelfs/ransomwatch/internal/conf"
	"github.com/sentinelfs/ransomwatch/internal/datastore"
	"github.com/sentinelfs/ransomwatch/internal/events"
	"github.com/sentinelfs/ransomwatch/internal/ingest"
	"github.com/sentinelfs/ransomwatch/internal/logging"
	"github.com/sentinelfs/ransomwatch/internal/notification"
	"github.com/sentinelfs/ransomwatch/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection engine and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "HTTP API listen port")
	cmd.Flags().Float64Var(&settings.Detection.EntropyThreshold, "entropy-threshold", viper.GetFloat64("detection.entropythreshold"), "Entropy score above which a file looks encrypted (0-100)")
	cmd.Flags().IntVar(&settings.Detection.RenameThreshold, "rename-threshold", viper.GetInt("detection.renamethreshold"), "Rename count above which a process looks suspicious")
	cmd.Flags().BoolVar(&settings.Detection.AutoBlock, "auto-block", viper.GetBool("detection.autoblock"), "Block processes on threat severity")
	cmd.Flags().StringVar(&settings.Detection.WebhookURL, "webhook-url", viper.GetString("detection.webhookurl"), "Destination for threat notifications")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	if settings.Main.Log.Enabled {
		fileLogger, closeLog, err := logging.NewFileLogger(settings.Main.Log.Path, "serve", slog.LevelInfo)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", settings.Main.Log.Path, err)
		}
		defer func() {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
			}
		}()
		logger = fileLogger
	}

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

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	broadcaster := events.NewBroadcaster()
	defer broadcaster.Shutdown()

	notifier := notification.NewNotifier(metrics)
	pipeline := ingest.NewPipeline(store, broadcaster, notifier, metrics)

	e := echo.New()
	e.HideBanner = true
	e.Debug = settings.WebServer.Debug
	api.New(e, store, pipeline, broadcaster, metrics)

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("HTTP API listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	notifier.Wait()
	return nil
}
