package main

import (
	"context"
	"errors"
	"os"
	"time"

	"expensebot/internal/amqp"
	"expensebot/internal/cli"
	applog "expensebot/internal/log"
	"expensebot/internal/services"
	"expensebot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting expensebot-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	app, err := cli.BuildApp(context.Background(), cfg, repo, logger)
	if err != nil {
		logger.Error("Failed to build application", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer app.Close()

	sweeper := app.Sweeper()
	if sweeper == nil {
		logger.Error("Email sweeps are disabled: set EMAIL_SOURCE and OPENAI_API_KEY")
		os.Exit(1)
	}
	sweepWorker := worker.NewSweepWorker(sweeper)

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP_URL not set, running on the sweep interval only")
	}

	processor := services.NewSweepProcessor(sweeper, services.SweepProcessorConfig{
		Interval: cfg.SweepInterval,
		// StartupSweep below covers the first run.
		RunOnStart: false,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		_ = processor.Stop(ctx)
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	if err := sweepWorker.StartupSweep(ctx); err != nil {
		logger.Error("Startup sweep failed", applog.FieldError, err.Error())
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeSweepRequests(ctx, sweepWorker.HandleSweepRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Sweep request consumption failed", applog.FieldError, err.Error())
			}
		}()
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sweep processor", applog.FieldError, err.Error())
		os.Exit(1)
	}

	logger.Info("Worker running",
		"sweep_interval", cfg.SweepInterval,
		"email_source", cfg.EmailSource,
		"sweep_queue", cfg.AMQPEnabled())

	cli.WaitForShutdown(ctx, done)

	handled, last, lastRun := sweepWorker.Handled()
	logger.Info("Worker stopped gracefully",
		"sweeps_handled", handled,
		"last_expenses_saved", last.ExpensesSaved,
		"last_run", lastRun)
}
