package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensebot/internal/amqp"
	"expensebot/internal/cli"
	apphttp "expensebot/internal/http"
	applog "expensebot/internal/log"
	"expensebot/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	app, err := cli.BuildApp(context.Background(), cfg, repo, logger)
	if err != nil {
		logger.Error("Failed to build application", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer app.Close()

	deps := apphttp.Deps{
		Expenses:  app.Expenses,
		Assistant: app.Assistant,
		Reporter:  app.Composer,
		Sweeper:   app.Sweeper(),
		Sheets:    app.Sheets,
		Store:     repo,
	}
	if app.Ingestor != nil {
		deps.ClassificationCache = app.Ingestor.ClassificationCache()
	}

	// With a queue the worker process owns scheduled sweeps; without one
	// the server runs them itself.
	var (
		amqpClient *amqp.Client
		processor  *services.SweepProcessor
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, async sweeps disabled",
				applog.FieldComponent, applog.ComponentAMQP, applog.FieldError, err.Error())
		} else {
			deps.Publisher = amqpClient
		}
	} else if sweeper := app.Sweeper(); sweeper != nil {
		processor = services.NewSweepProcessor(sweeper, services.SweepProcessorConfig{
			Interval:   cfg.SweepInterval,
			RunOnStart: true,
		})
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if processor != nil {
			_ = processor.Stop(ctx)
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	if processor != nil {
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start sweep processor", applog.FieldError, err.Error())
		}
	}

	logger.Info("Starting expensebot server",
		"port", cfg.Port,
		"email_source", cfg.EmailSource,
		"sweep_queue", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
