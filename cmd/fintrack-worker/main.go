package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	"fintrack/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

	repo := cli.InitSQLite(logger.WithComponent(log.ComponentStorage), cfg.SQLiteDBPath, loc)
	defer repo.Close()

	exporter := newExporter(cfg, logger)

	balance := services.NewBalanceService(repo, loc, nil)
	budget := services.NewBudgetService(repo, balance, nil)
	eventWorker := worker.NewEventWorker(repo, budget, exporter, loc)

	var scheduler *worker.BudgetScheduler
	if cfg.BudgetCheckSchedule != "" {
		var err error
		scheduler, err = worker.NewBudgetScheduler(cfg.BudgetCheckSchedule, loc, eventWorker, repo)
		if err != nil {
			logger.Error("Failed to schedule budget sweep", "error", err)
			os.Exit(1)
		}
	}

	var client *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if scheduler != nil {
			scheduler.Stop(ctx)
		}
	})

	if scheduler != nil {
		scheduler.Start()
	}

	if client != nil {
		go func() {
			if err := client.ConsumeEvents(ctx, eventWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption failed", "error", err)
			}
		}()
		logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue, "export_backend", cfg.ExportBackend)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}

// newExporter returns nil for the "none" backend so the worker only checks budgets.
func newExporter(cfg *config.Config, logger *log.Logger) sheets.Exporter {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := backend.NewFactory(logger).CreateExporter(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize export backend", "error", err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res.Exporter
}
