package main

import (
	"context"
	"errors"
	"os"
	"time"

	"wealthwatch/internal/amqp"
	"wealthwatch/internal/cli"
	"wealthwatch/internal/log"
	"wealthwatch/internal/services"
	"wealthwatch/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.Default().Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(os.Stdout, cfg.LogLevel).WithComponent(log.ComponentWorker)
	logger.Info("Starting wealthwatch-worker", "backend", cfg.DataBackend)

	app, err := cli.OpenApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to open backend", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		_ = app.Close()
		os.Exit(1)
	}

	processor := services.NewOutboxProcessor(app.Store, amqpClient, services.OutboxProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
		Retention:    cfg.OutboxRetention,
	}, logger)

	reconcileWorker := worker.NewReconcileWorker(app.Reconciler, logger)

	parent, fail := context.WithCancel(context.Background())
	defer fail()

	ctx, done := cli.GracefulShutdown(parent, logger, shutdownTimeout, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Outbox processor did not stop cleanly", log.FieldError, err)
		}
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
		stats := reconcileWorker.Stats()
		logger.Info("Reconcile worker stopped",
			"handled", stats.Handled, "skipped", stats.Skipped, "drifts", stats.Drifts)
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start outbox processor", log.FieldError, err)
		fail()
	}

	go func() {
		err := amqpClient.ConsumeEvents(ctx, reconcileWorker.HandleEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", log.FieldError, err)
		}
		fail()
	}()

	cli.WaitForShutdown(ctx, done)
}
