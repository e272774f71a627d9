package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable expense store. Every mutation is a single
// auto-committed statement, so a successful return means the row is durable.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// dsn adds the connection pragmas shared by the server and worker processes.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &core.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Record persists a new expense. When ExternalID is set and already present
// it returns core.ErrDuplicateIngestion and leaves the store unchanged.
func (r *SQLiteRepository) Record(ctx context.Context, e core.Expense) (core.Expense, error) {
	e = e.Normalize()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		Date:       e.Date.String(),
		Vendor:     nullString(e.Vendor),
		Amount:     e.Amount.String(),
		Currency:   nullString(e.Currency),
		Category:   nullString(e.Category),
		Source:     string(e.Source),
		Notes:      nullString(e.Notes),
		ExternalID: nullString(e.ExternalID),
	})
	if errors.Is(err, sql.ErrNoRows) {
		slog.DebugContext(ctx, "Duplicate ingestion ignored", "external_id", e.ExternalID)
		return core.Expense{}, core.ErrDuplicateIngestion
	}
	if err != nil {
		return core.Expense{}, &core.StorageError{Op: "record", Err: fmt.Errorf("create expense: %w", err)}
	}

	saved, err := toCoreExpense(row)
	if err != nil {
		return core.Expense{}, &core.StorageError{Op: "record", Err: err}
	}

	slog.InfoContext(ctx, "Expense recorded",
		"id", saved.ID,
		"date", saved.Date.String(),
		"vendor", saved.Vendor,
		"amount", saved.Amount.String(),
		"category", saved.Category,
		"source", saved.Source)

	return saved, nil
}

// GetExpense returns a single expense or core.ErrNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, &core.StorageError{Op: "get expense", Err: err}
	}
	e, err := toCoreExpense(row)
	if err != nil {
		return core.Expense{}, &core.StorageError{Op: "get expense", Err: err}
	}
	return e, nil
}

// QueryRange returns expenses with start <= date <= end ordered by date, then id.
func (r *SQLiteRepository) QueryRange(ctx context.Context, start, end core.Date) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesInRange(ctx, rangeParams(start, end))
	if err != nil {
		return nil, &core.StorageError{Op: "query range", Err: err}
	}
	return toCoreExpenses(rows, "query range")
}

// QueryCategoryRange is QueryRange restricted to one category, matched
// case-insensitively.
func (r *SQLiteRepository) QueryCategoryRange(ctx context.Context, category string, start, end core.Date) ([]core.Expense, error) {
	rows, err := r.queries.ListCategoryExpensesInRange(ctx, ListCategoryExpensesInRangeParams{
		StartDate: start.String(),
		EndDate:   end.String(),
		Category:  strings.TrimSpace(category),
	})
	if err != nil {
		return nil, &core.StorageError{Op: "query category range", Err: err}
	}
	return toCoreExpenses(rows, "query category range")
}

// Aggregate sums expenses in the inclusive range grouped by the requested
// dimension. Null keys are reported as core.DefaultCategory with Missing set.
// Groups are ordered by sum descending; ties keep the order in which the
// group first appears in date order.
func (r *SQLiteRepository) Aggregate(ctx context.Context, start, end core.Date, groupBy core.GroupBy) ([]core.GroupTotal, error) {
	var (
		rows []KeyAmountRow
		err  error
	)
	switch groupBy {
	case core.GroupByCategory:
		rows, err = r.queries.ListCategoryAmountsInRange(ctx, rangeParams(start, end))
	case core.GroupByVendor:
		rows, err = r.queries.ListVendorAmountsInRange(ctx, rangeParams(start, end))
	default:
		return nil, &core.ValidationError{Field: "group_by", Message: fmt.Sprintf("unsupported grouping %d", groupBy)}
	}
	if err != nil {
		return nil, &core.StorageError{Op: "aggregate " + groupBy.String(), Err: err}
	}

	index := make(map[string]int)
	var groups []core.GroupTotal
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, &core.StorageError{Op: "aggregate " + groupBy.String(), Err: fmt.Errorf("parse amount %q: %w", row.Amount, err)}
		}
		key := core.DefaultCategory
		missing := true
		if row.Key.Valid && strings.TrimSpace(row.Key.String) != "" {
			key = row.Key.String
			missing = false
		}
		// Null and literal "Uncategorized" keys stay separate groups.
		mapKey := key
		if missing {
			mapKey = "\x00missing"
		}
		i, ok := index[mapKey]
		if !ok {
			i = len(groups)
			index[mapKey] = i
			groups = append(groups, core.GroupTotal{Key: key, Sum: decimal.Zero, Missing: missing})
		}
		groups[i].Sum = groups[i].Sum.Add(amount)
		groups[i].Count++
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Sum.GreaterThan(groups[b].Sum)
	})
	return groups, nil
}

// Total sums every expense in the inclusive range; zero when there are none.
func (r *SQLiteRepository) Total(ctx context.Context, start, end core.Date) (decimal.Decimal, error) {
	amounts, err := r.queries.ListAmountsInRange(ctx, rangeParams(start, end))
	if err != nil {
		return decimal.Zero, &core.StorageError{Op: "total", Err: err}
	}
	total := decimal.Zero
	for _, a := range amounts {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return decimal.Zero, &core.StorageError{Op: "total", Err: fmt.Errorf("parse amount %q: %w", a, err)}
		}
		total = total.Add(d)
	}
	return total, nil
}

// ExternalIDExists reports whether an expense with the given external id was recorded.
func (r *SQLiteRepository) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	exists, err := r.queries.ExternalIDExists(ctx, externalID)
	if err != nil {
		return false, &core.StorageError{Op: "external id lookup", Err: err}
	}
	return exists, nil
}

// ReassignCategory changes the category of an existing expense.
func (r *SQLiteRepository) ReassignCategory(ctx context.Context, id int64, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return &core.ValidationError{Field: "category", Message: core.ErrEmptyCategory.Error()}
	}
	n, err := r.queries.UpdateExpenseCategory(ctx, UpdateExpenseCategoryParams{Category: category, ID: id})
	if err != nil {
		return &core.StorageError{Op: "reassign category", Err: err}
	}
	if n == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Expense category reassigned", "id", id, "category", category)
	return nil
}

// UpsertBudget creates or replaces the budget for a category.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	b.Category = strings.TrimSpace(b.Category)
	if b.Period == "" {
		b.Period = core.PeriodMonthly
	}
	if err := b.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertBudget(ctx, UpsertBudgetParams{
		Category: b.Category,
		Amount:   b.Amount.String(),
		Period:   string(b.Period),
	})
	if err != nil {
		return &core.StorageError{Op: "upsert budget", Err: err}
	}
	slog.InfoContext(ctx, "Budget saved", "category", b.Category, "amount", b.Amount.String(), "period", b.Period)
	return nil
}

// ListBudgets returns every budget ordered by category.
func (r *SQLiteRepository) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgets(ctx)
	if err != nil {
		return nil, &core.StorageError{Op: "list budgets", Err: err}
	}
	budgets := make([]core.Budget, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, &core.StorageError{Op: "list budgets", Err: fmt.Errorf("parse amount %q: %w", row.Amount, err)}
		}
		budgets = append(budgets, core.Budget{
			Category: row.Category,
			Amount:   amount,
			Period:   core.BudgetPeriod(row.Period),
		})
	}
	return budgets, nil
}

// ListKnownCategories returns the distinct non-empty categories in use.
func (r *SQLiteRepository) ListKnownCategories(ctx context.Context) ([]string, error) {
	cats, err := r.queries.ListKnownCategories(ctx)
	if err != nil {
		return nil, &core.StorageError{Op: "list categories", Err: err}
	}
	return cats, nil
}

// GetSyncCursor returns the inbox sync cursor; both fields are nil before
// the first sweep.
func (r *SQLiteRepository) GetSyncCursor(ctx context.Context) (core.SyncCursor, error) {
	row, err := r.queries.GetSyncCursor(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SyncCursor{}, nil
	}
	if err != nil {
		return core.SyncCursor{}, &core.StorageError{Op: "get sync cursor", Err: err}
	}

	var cursor core.SyncCursor
	if row.LastSyncTimestamp.Valid {
		ts, err := time.Parse(time.RFC3339Nano, row.LastSyncTimestamp.String)
		if err != nil {
			return core.SyncCursor{}, &core.StorageError{Op: "get sync cursor", Err: fmt.Errorf("parse timestamp %q: %w", row.LastSyncTimestamp.String, err)}
		}
		ts = ts.UTC()
		cursor.LastSyncTimestamp = &ts
	}
	if row.LastHistoryID.Valid {
		h := row.LastHistoryID.String
		cursor.LastHistoryID = &h
	}
	return cursor, nil
}

// UpdateSyncCursor merges the given fields into the cursor; nil arguments
// keep the stored value.
func (r *SQLiteRepository) UpdateSyncCursor(ctx context.Context, ts *time.Time, historyID *string) error {
	var params UpsertSyncCursorParams
	if ts != nil {
		params.LastSyncTimestamp = sql.NullString{String: ts.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	if historyID != nil {
		params.LastHistoryID = sql.NullString{String: *historyID, Valid: true}
	}
	if err := r.queries.UpsertSyncCursor(ctx, params); err != nil {
		return &core.StorageError{Op: "update sync cursor", Err: err}
	}
	slog.DebugContext(ctx, "Sync cursor updated",
		"timestamp_set", params.LastSyncTimestamp.Valid,
		"history_id_set", params.LastHistoryID.Valid)
	return nil
}

func rangeParams(start, end core.Date) ListExpensesInRangeParams {
	return ListExpensesInRangeParams{StartDate: start.String(), EndDate: end.String()}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toCoreExpenses(rows []Expense, op string) ([]core.Expense, error) {
	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := toCoreExpense(row)
		if err != nil {
			return nil, &core.StorageError{Op: op, Err: err}
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

func toCoreExpense(row Expense) (core.Expense, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse date %q: %w", row.Date, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse amount %q: %w", row.Amount, err)
	}
	category := row.Category.String
	if !row.Category.Valid || category == "" {
		category = core.DefaultCategory
	}
	return core.Expense{
		ID:         row.ID,
		Date:       date,
		Vendor:     row.Vendor.String,
		Amount:     amount,
		Currency:   row.Currency.String,
		Category:   category,
		Source:     core.Source(row.Source),
		Notes:      row.Notes.String,
		ExternalID: row.ExternalID.String,
	}, nil
}
