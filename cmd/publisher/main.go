package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oddsmith/platform/internal/guard"
	"github.com/oddsmith/platform/internal/infra"
	"github.com/oddsmith/platform/internal/integrity"
	"github.com/oddsmith/platform/internal/provider"
	"github.com/oddsmith/platform/internal/publish"
	"github.com/oddsmith/platform/internal/repository"
)

const consumerGroup = "oddsmith-publisher"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("publisher failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("publisher connected to postgres")

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, infra.TopicPublishQueue, consumerGroup, cfg.KafkaEnabled, logger)
	defer consumer.Close()

	matrix := guard.NewWriterMatrix()
	publogRepo := repository.NewPublishLogRepository(matrix)
	snapshotRepo := repository.NewSnapshotRepository(matrix)
	flagRepo := repository.NewFlagRepository(matrix)

	metrics := integrity.NewMetrics(prometheus.NewRegistry())
	validator := publish.NewCopyValidator(integrity.DefaultForbiddenPhrases)
	sender := provider.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID, logger)

	window := time.Duration(cfg.PublishWindowMinutes) * time.Minute
	pub := publish.NewPublisher(pool, consumer, publogRepo, snapshotRepo, flagRepo,
		validator, metrics, sender, window, logger)

	logger.Info("publisher starting", "topic", infra.TopicPublishQueue, "group", consumerGroup, "window", window)
	if err := pub.Run(ctx); err != nil && err != context.Canceled {
		return err
	}

	logger.Info("publisher shutting down")
	return nil
}
