package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/heatwatch/heat-risk-pipeline/internal/adapter/backend"
	"github.com/heatwatch/heat-risk-pipeline/internal/adapter/csvstore"
	httpadapter "github.com/heatwatch/heat-risk-pipeline/internal/adapter/http"
	kafkaadapter "github.com/heatwatch/heat-risk-pipeline/internal/adapter/kafka"
	"github.com/heatwatch/heat-risk-pipeline/internal/cluster"
	"github.com/heatwatch/heat-risk-pipeline/internal/config"
	"github.com/heatwatch/heat-risk-pipeline/internal/observability"
	"github.com/heatwatch/heat-risk-pipeline/internal/pipeline"
)

func main() {
	// Optional local overrides; the daemon runs on plain env vars otherwise.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fetcher := backend.NewClient(cfg.BackendURL, cfg.FetchTimeout, cfg.FacilityTimeout, cfg.FetchWorkers, cfg.FacilityCacheSize, logger, metrics)
	history := csvstore.NewStore(cfg.HistoryCSV, cfg.OutputCSV)

	var publisher pipeline.SnapshotPublisher
	var kafkaPub *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPub = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPub
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	driver := pipeline.New(cluster.NewKMeans(cfg.Seed), logger, metrics)
	opts := pipeline.Options{
		UseRolling: cfg.UseRolling,
		Window:     cfg.RollingWindow,
		Clusters:   cfg.Clusters,
		Seed:       cfg.Seed,
	}

	scheduler := pipeline.NewScheduler(
		driver, fetcher, history, publisher,
		clockwork.NewRealClock(), cfg.RunInterval, opts, logger, metrics,
	)

	srv := httpadapter.NewServer(cfg.HTTPAddr, scheduler, scheduler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start classification scheduler.
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
