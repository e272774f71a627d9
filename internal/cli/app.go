package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expensebot/internal/cache"
	"expensebot/internal/config"
	"expensebot/internal/core"
	"expensebot/internal/export/sheets"
	"expensebot/internal/inbox"
	"expensebot/internal/inbox/gmail"
	"expensebot/internal/inbox/memory"
	"expensebot/internal/llm"
	applog "expensebot/internal/log"
	"expensebot/internal/report"
	"expensebot/internal/services"
	"expensebot/internal/storage"
)

// App holds the services every entry point is built from. Ingestor is
// nil when no inbox or no classifier is configured; Sheets is nil when no
// spreadsheet is configured.
type App struct {
	Repo      *storage.SQLiteRepository
	Expenses  *services.ExpenseService
	Composer  *report.Composer
	Assistant *services.Assistant
	Ingestor  *services.Ingestor
	Sheets    services.SheetWriter
	Caches    *cache.Manager
}

// Sweeper returns the ingestor as a services.Sweeper, or nil when
// sweeps are disabled.
func (a *App) Sweeper() services.Sweeper {
	if a.Ingestor == nil {
		return nil
	}
	return a.Ingestor
}

// Close stops cache cleanup and closes the store.
func (a *App) Close() error {
	a.Caches.Stop()
	return a.Repo.Close()
}

// NewLLMClient builds the OpenAI client, or returns nil when no API key is
// configured.
func NewLLMClient(cfg *config.Config) (*llm.Client, error) {
	client, err := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.OpenAITimeout,
	})
	if errors.Is(err, core.ErrMissingCredentials) {
		return nil, nil
	}
	return client, err
}

// NewMessageSource builds the configured inbox, or returns nil for "none".
func NewMessageSource(ctx context.Context, cfg *config.Config) (inbox.MessageSource, error) {
	switch cfg.EmailSource {
	case config.EmailSourceGmail:
		src, err := gmail.New(ctx, gmail.Config{
			ClientFile: cfg.GoogleOAuthClientFile,
			ClientJSON: cfg.GoogleOAuthClientJSON,
			TokenFile:  cfg.GoogleOAuthTokenFile,
			TokenJSON:  cfg.GoogleOAuthTokenJSON,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.EmailSourceMemory:
		src, err := memory.NewFromDir(cfg.EmailFixturesDir)
		if err != nil {
			return nil, fmt.Errorf("load email fixtures: %w", err)
		}
		return src, nil
	default:
		return nil, nil
	}
}

// NewSheetWriter builds the Google Sheets exporter, or returns nil when no
// spreadsheet is configured.
func NewSheetWriter(ctx context.Context, cfg *config.Config) (services.SheetWriter, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	client, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.SheetsSpreadsheetID,
		CredentialsJSON: cfg.SheetsCredentialsJSON,
		CredentialsFile: cfg.SheetsCredentialsFile,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// BuildApp wires the store, the language model and the inbox into the
// services. An unusable inbox disables sweeps instead of failing startup.
func BuildApp(ctx context.Context, cfg *config.Config, repo *storage.SQLiteRepository, logger *applog.Logger) (*App, error) {
	client, err := NewLLMClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("language model client: %w", err)
	}

	agg := services.NewAggregationEngine(repo)
	app := &App{
		Repo:     repo,
		Composer: report.NewComposer(agg, repo),
		Caches:   cache.NewManager(),
	}

	var (
		receipts services.ReceiptReader
		nlu      services.ExpenseNLU = llm.PatternNLU{}
	)
	if client != nil {
		receipts, nlu = client, client
	} else {
		logger.Warn("OPENAI_API_KEY not set: chat falls back to pattern matching, receipts and email sweeps are disabled",
			applog.FieldComponent, applog.ComponentLLM)
	}
	app.Expenses = services.NewExpenseService(repo, agg, receipts)

	source, err := NewMessageSource(ctx, cfg)
	switch {
	case err != nil:
		logger.Warn("Email source unavailable, sweeps disabled",
			applog.FieldComponent, applog.ComponentInbox,
			applog.FieldSource, cfg.EmailSource,
			applog.FieldError, err.Error())
	case source == nil:
		logger.Info("Email sweeps disabled", applog.FieldComponent, applog.ComponentInbox)
	case client == nil:
		logger.Warn("Email source configured but no classifier available, sweeps disabled",
			applog.FieldComponent, applog.ComponentInbox)
	default:
		ingCfg := services.DefaultIngestorConfig()
		ingCfg.MaxMessages = cfg.SweepMaxMessages
		ingCfg.MinConfidence = cfg.ClassifierMinConfidence
		app.Ingestor = services.NewIngestor(repo, source, client, ingCfg)
		app.Caches.Register("email_classification", app.Ingestor.ClassificationCache())
		logger.Info("Email sweeps enabled",
			applog.FieldComponent, applog.ComponentInbox,
			applog.FieldSource, cfg.EmailSource)
	}

	writer, err := NewSheetWriter(ctx, cfg)
	switch {
	case err != nil:
		logger.Warn("Google Sheets export unavailable",
			applog.FieldComponent, applog.ComponentExport,
			applog.FieldError, err.Error())
	case writer != nil:
		app.Sheets = writer
	}

	app.Assistant = services.NewAssistant(app.Expenses, nlu, app.Sweeper(), app.Composer)
	app.Caches.StartCleanup(30 * time.Minute)
	return app, nil
}
