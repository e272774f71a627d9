package storage

import (
	"database/sql"
)

type Budget struct {
	Category  string
	Amount    string
	Period    string
	UpdatedAt string
}

type Expense struct {
	ID         int64
	Date       string
	Vendor     sql.NullString
	Amount     string
	Currency   sql.NullString
	Category   sql.NullString
	Source     string
	Notes      sql.NullString
	ExternalID sql.NullString
	CreatedAt  string
}

type SyncCursor struct {
	ID                int64
	LastSyncTimestamp sql.NullString
	LastHistoryID     sql.NullString
}
