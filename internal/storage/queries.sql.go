package storage

import (
	"context"
	"database/sql"
)

const expenseColumns = `id, date, vendor, amount, currency, category, source, notes, external_id, created_at`

func scanExpense(row interface{ Scan(...interface{}) error }) (Expense, error) {
	var i Expense
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.Vendor,
		&i.Amount,
		&i.Currency,
		&i.Category,
		&i.Source,
		&i.Notes,
		&i.ExternalID,
		&i.CreatedAt,
	)
	return i, err
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (date, vendor, amount, currency, category, source, notes, external_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (external_id) DO NOTHING
RETURNING ` + expenseColumns

type CreateExpenseParams struct {
	Date       string
	Vendor     sql.NullString
	Amount     string
	Currency   sql.NullString
	Category   sql.NullString
	Source     string
	Notes      sql.NullString
	ExternalID sql.NullString
}

// CreateExpense returns sql.ErrNoRows when the external id already exists.
func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.Date,
		arg.Vendor,
		arg.Amount,
		arg.Currency,
		arg.Category,
		arg.Source,
		arg.Notes,
		arg.ExternalID,
	)
	return scanExpense(row)
}

const getExpense = `-- name: GetExpense :one
SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id int64) (Expense, error) {
	row := q.db.QueryRowContext(ctx, getExpense, id)
	return scanExpense(row)
}

const listExpensesInRange = `-- name: ListExpensesInRange :many
SELECT ` + expenseColumns + ` FROM expenses
WHERE date BETWEEN ? AND ?
ORDER BY date ASC, id ASC`

type ListExpensesInRangeParams struct {
	StartDate string
	EndDate   string
}

func (q *Queries) ListExpensesInRange(ctx context.Context, arg ListExpensesInRangeParams) ([]Expense, error) {
	return q.listExpenses(ctx, listExpensesInRange, arg.StartDate, arg.EndDate)
}

const listCategoryExpensesInRange = `-- name: ListCategoryExpensesInRange :many
SELECT ` + expenseColumns + ` FROM expenses
WHERE date BETWEEN ? AND ? AND lower(category) = lower(?)
ORDER BY date ASC, id ASC`

type ListCategoryExpensesInRangeParams struct {
	StartDate string
	EndDate   string
	Category  string
}

func (q *Queries) ListCategoryExpensesInRange(ctx context.Context, arg ListCategoryExpensesInRangeParams) ([]Expense, error) {
	return q.listExpenses(ctx, listCategoryExpensesInRange, arg.StartDate, arg.EndDate, arg.Category)
}

func (q *Queries) listExpenses(ctx context.Context, query string, args ...interface{}) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		i, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCategoryAmountsInRange = `-- name: ListCategoryAmountsInRange :many
SELECT category, amount FROM expenses
WHERE date BETWEEN ? AND ?
ORDER BY date ASC, id ASC`

const listVendorAmountsInRange = `-- name: ListVendorAmountsInRange :many
SELECT vendor, amount FROM expenses
WHERE date BETWEEN ? AND ?
ORDER BY date ASC, id ASC`

type KeyAmountRow struct {
	Key    sql.NullString
	Amount string
}

func (q *Queries) ListCategoryAmountsInRange(ctx context.Context, arg ListExpensesInRangeParams) ([]KeyAmountRow, error) {
	return q.listKeyAmounts(ctx, listCategoryAmountsInRange, arg.StartDate, arg.EndDate)
}

func (q *Queries) ListVendorAmountsInRange(ctx context.Context, arg ListExpensesInRangeParams) ([]KeyAmountRow, error) {
	return q.listKeyAmounts(ctx, listVendorAmountsInRange, arg.StartDate, arg.EndDate)
}

func (q *Queries) listKeyAmounts(ctx context.Context, query string, args ...interface{}) ([]KeyAmountRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []KeyAmountRow
	for rows.Next() {
		var i KeyAmountRow
		if err := rows.Scan(&i.Key, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listAmountsInRange = `-- name: ListAmountsInRange :many
SELECT amount FROM expenses WHERE date BETWEEN ? AND ?`

func (q *Queries) ListAmountsInRange(ctx context.Context, arg ListExpensesInRangeParams) ([]string, error) {
	return q.listStrings(ctx, listAmountsInRange, arg.StartDate, arg.EndDate)
}

const externalIDExists = `-- name: ExternalIDExists :one
SELECT EXISTS (SELECT 1 FROM expenses WHERE external_id = ?)`

func (q *Queries) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	row := q.db.QueryRowContext(ctx, externalIDExists, externalID)
	var exists int64
	err := row.Scan(&exists)
	return exists == 1, err
}

const updateExpenseCategory = `-- name: UpdateExpenseCategory :execrows
UPDATE expenses SET category = ? WHERE id = ?`

type UpdateExpenseCategoryParams struct {
	Category string
	ID       int64
}

func (q *Queries) UpdateExpenseCategory(ctx context.Context, arg UpdateExpenseCategoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpenseCategory, arg.Category, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listKnownCategories = `-- name: ListKnownCategories :many
SELECT DISTINCT category FROM expenses
WHERE category IS NOT NULL AND trim(category) <> ''
ORDER BY category`

func (q *Queries) ListKnownCategories(ctx context.Context) ([]string, error) {
	return q.listStrings(ctx, listKnownCategories)
}

func (q *Queries) listStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertBudget = `-- name: UpsertBudget :exec
INSERT INTO budgets (category, amount, period, updated_at)
VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
ON CONFLICT (category) DO UPDATE SET
    amount = excluded.amount,
    period = excluded.period,
    updated_at = excluded.updated_at`

type UpsertBudgetParams struct {
	Category string
	Amount   string
	Period   string
}

func (q *Queries) UpsertBudget(ctx context.Context, arg UpsertBudgetParams) error {
	_, err := q.db.ExecContext(ctx, upsertBudget, arg.Category, arg.Amount, arg.Period)
	return err
}

const listBudgets = `-- name: ListBudgets :many
SELECT category, amount, period, updated_at FROM budgets ORDER BY category`

func (q *Queries) ListBudgets(ctx context.Context) ([]Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Budget
	for rows.Next() {
		var i Budget
		if err := rows.Scan(&i.Category, &i.Amount, &i.Period, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getSyncCursor = `-- name: GetSyncCursor :one
SELECT id, last_sync_timestamp, last_history_id FROM sync_cursor WHERE id = 1`

func (q *Queries) GetSyncCursor(ctx context.Context) (SyncCursor, error) {
	row := q.db.QueryRowContext(ctx, getSyncCursor)
	var i SyncCursor
	err := row.Scan(&i.ID, &i.LastSyncTimestamp, &i.LastHistoryID)
	return i, err
}

const upsertSyncCursor = `-- name: UpsertSyncCursor :exec
INSERT INTO sync_cursor (id, last_sync_timestamp, last_history_id)
VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    last_sync_timestamp = COALESCE(excluded.last_sync_timestamp, last_sync_timestamp),
    last_history_id = COALESCE(excluded.last_history_id, last_history_id)`

type UpsertSyncCursorParams struct {
	LastSyncTimestamp sql.NullString
	LastHistoryID     sql.NullString
}

func (q *Queries) UpsertSyncCursor(ctx context.Context, arg UpsertSyncCursorParams) error {
	_, err := q.db.ExecContext(ctx, upsertSyncCursor, arg.LastSyncTimestamp, arg.LastHistoryID)
	return err
}
