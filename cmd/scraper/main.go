package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fitsch/aggregator/config"
	"github.com/fitsch/aggregator/internal/bus"
	"github.com/fitsch/aggregator/internal/delegate"
	"github.com/fitsch/aggregator/internal/diag"
	"github.com/fitsch/aggregator/internal/document"
	"github.com/fitsch/aggregator/internal/query"
	"github.com/fitsch/aggregator/internal/stores"
	"github.com/fitsch/aggregator/internal/telemetry"
	"github.com/fitsch/aggregator/internal/transfer"
)

var rootCmd = &cobra.Command{
	Use:   "scraper [config-file]",
	Short: "Multi-retailer grocery price aggregation service",
	Long: `The scraper answers free-text grocery queries over the message bus,
serving from its document-store cache where possible and scraping each
requested retailer's catalog endpoint where not.`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfgPath := "config.json"
	if len(args) > 0 {
		cfgPath = args[0]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	zlog.Logger = *logger
	logger.Info().Msg("Starting fitsch scraper")

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialise telemetry")
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// A missing document store is survivable: every lookup becomes a miss
	// and writes are dropped.
	store, err := document.Connect(ctx, cfg.MongoDBURI, cfg.DflatDBName)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to establish connection to document store")
		store = nil
	}

	driver := transfer.NewDriver(transfer.Config{
		PoolSize:          cfg.MaxConcurrentTransfers,
		UserAgent:         cfg.Curl.UserAgent,
		RequestsPerSecond: cfg.Scrape.RequestsPerSecond,
	}, *logger)
	driver.Run()

	delegator := delegate.New(cfg.MaxConcurrentTasks)
	registry := stores.NewDefaultRegistry()

	resolver := query.New(delegator, driver, store, registry,
		time.Duration(cfg.EntryExpiryTimeSeconds)*time.Second)

	client := bus.NewClient(bus.Config{
		Type:           bus.ConnType(cfg.Buxtehude.Type),
		PathOrHostname: cfg.Buxtehude.PathOrHostname,
		Port:           cfg.Buxtehude.Port,
		Name:           cfg.Buxtehude.ClientName,
		Format:         bus.ParseFormat(cfg.Buxtehude.Format),
	})
	bus.NewFrontend(client, resolver).Attach()
	if err := client.Connect(); err != nil {
		logger.Warn().Err(err).Msg("Failed to connect to bus, will keep retrying")
		go client.ConnectWithRetry()
	}

	var diagSrv *diag.Server
	if cfg.Diag.Addr != "" {
		diagSrv = diag.New(cfg.Diag.Addr, store, *logger)
		diagSrv.Run()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client.Close()
	driver.Close()
	if diagSrv != nil {
		if err := diagSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Diagnostics server forced to shutdown")
		}
	}
	if err := store.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to close document store")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shutdown telemetry")
	}

	logger.Info().Msg("Scraper exited")
	return nil
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "fitsch-scraper").Logger()
	return &logger
}
