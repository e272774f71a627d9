package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
)

// Ports consumed by the services. storage.SQLiteRepository satisfies both
// store interfaces; the collaborators are implemented by internal/llm.
type (
	ExpenseStore interface {
		Record(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
		QueryRange(ctx context.Context, start, end core.Date) ([]core.Expense, error)
		QueryCategoryRange(ctx context.Context, category string, start, end core.Date) ([]core.Expense, error)
		Aggregate(ctx context.Context, start, end core.Date, groupBy core.GroupBy) ([]core.GroupTotal, error)
		Total(ctx context.Context, start, end core.Date) (decimal.Decimal, error)
		UpsertBudget(ctx context.Context, b core.Budget) error
		ListBudgets(ctx context.Context) ([]core.Budget, error)
		ListKnownCategories(ctx context.Context) ([]string, error)
		ReassignCategory(ctx context.Context, id int64, category string) error
	}

	// IngestionStore is the subset of the store used by inbox sweeps.
	IngestionStore interface {
		Record(ctx context.Context, e core.Expense) (core.Expense, error)
		ExternalIDExists(ctx context.Context, externalID string) (bool, error)
		GetSyncCursor(ctx context.Context) (core.SyncCursor, error)
		UpdateSyncCursor(ctx context.Context, ts *time.Time, historyID *string) error
	}

	EmailClassifier interface {
		ClassifyEmail(ctx context.Context, msg core.InboundMessage) (core.EmailClassification, error)
	}

	ReceiptReader interface {
		ReadReceipt(ctx context.Context, image []byte, mimeType string) (core.ExtractedExpense, error)
	}

	// ExpenseNLU turns a free-text chat message into a typed intent.
	ExpenseNLU interface {
		Interpret(ctx context.Context, text string) (core.Intent, error)
	}
)
