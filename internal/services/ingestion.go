package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"expensebot/internal/cache"
	"expensebot/internal/core"
	"expensebot/internal/inbox"
)

// IngestorConfig tunes inbox sweeps.
type IngestorConfig struct {
	// MaxMessages caps the messages fetched per sweep (default: 50)
	MaxMessages int

	// MinConfidence is the classifier confidence needed to treat a message as an expense (default: 0.7)
	MinConfidence float64

	// Lookback is the window used before the first successful sweep (default: 7 days)
	Lookback time.Duration

	// MaxRecordAttempts bounds the retries of a failing store write (default: 3)
	MaxRecordAttempts int

	// RetryBaseDelay is the first retry delay, doubled on each attempt (default: 200ms)
	RetryBaseDelay time.Duration

	// CacheSize and CacheTTL size the per-message classification cache (default: 500, 24h)
	CacheSize int
	CacheTTL  time.Duration

	// SweepTimeout bounds one shared sweep run (default: 5m)
	SweepTimeout time.Duration
}

// DefaultIngestorConfig returns sensible defaults
func DefaultIngestorConfig() IngestorConfig {
	return IngestorConfig{
		MaxMessages:       inbox.DefaultMaxMessages,
		MinConfidence:     0.7,
		Lookback:          7 * 24 * time.Hour,
		MaxRecordAttempts: 3,
		RetryBaseDelay:    200 * time.Millisecond,
		CacheSize:         500,
		CacheTTL:          24 * time.Hour,
		SweepTimeout:      5 * time.Minute,
	}
}

// Ingestor sweeps the inbox and records each expense message at most once.
// The unique external id in the store is the authoritative guard; the
// existence check only saves classifier calls.
type Ingestor struct {
	store      IngestionStore
	source     inbox.MessageSource
	classifier EmailClassifier
	config     IngestorConfig

	classified *cache.LRUCache[core.EmailClassification]
	group      singleflight.Group
	now        func() time.Time
}

func NewIngestor(store IngestionStore, source inbox.MessageSource, classifier EmailClassifier, config IngestorConfig) *Ingestor {
	defaults := DefaultIngestorConfig()
	if config.MaxMessages <= 0 {
		config.MaxMessages = defaults.MaxMessages
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = defaults.MinConfidence
	}
	if config.Lookback <= 0 {
		config.Lookback = defaults.Lookback
	}
	if config.MaxRecordAttempts <= 0 {
		config.MaxRecordAttempts = defaults.MaxRecordAttempts
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.CacheSize <= 0 {
		config.CacheSize = defaults.CacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = defaults.SweepTimeout
	}
	return &Ingestor{
		store:      store,
		source:     source,
		classifier: classifier,
		config:     config,
		classified: cache.NewLRUCache[core.EmailClassification](config.CacheSize, config.CacheTTL),
		now:        time.Now,
	}
}

// ClassificationCache exposes the cache so callers can register it for
// periodic cleanup.
func (i *Ingestor) ClassificationCache() *cache.LRUCache[core.EmailClassification] {
	return i.classified
}

// Sweep runs one inbox sweep. Concurrent calls in the same process share a
// single run and its result. The shared run is detached from any one
// caller's cancellation and bounded by SweepTimeout; a caller whose ctx ends
// first stops waiting and gets ctx.Err() while the run continues for the rest.
func (i *Ingestor) Sweep(ctx context.Context) (core.SweepStats, error) {
	if err := ctx.Err(); err != nil {
		return core.SweepStats{}, err
	}
	runCtx := context.WithoutCancel(ctx)
	ch := i.group.DoChan("sweep", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(runCtx, i.config.SweepTimeout)
		defer cancel()
		return i.sweep(ctx)
	})

	select {
	case <-ctx.Done():
		slog.WarnContext(ctx, "Stopped waiting for inbox sweep", "error", ctx.Err())
		return core.SweepStats{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.DebugContext(ctx, "Joined in-flight inbox sweep")
		}
		stats, _ := res.Val.(core.SweepStats)
		return stats, res.Err
	}
}

func (i *Ingestor) sweep(ctx context.Context) (core.SweepStats, error) {
	var stats core.SweepStats
	if i.source == nil {
		return stats, &core.CollaboratorError{Collaborator: "inbox", Err: errors.New("no message source configured")}
	}
	if i.classifier == nil {
		return stats, &core.CollaboratorError{Collaborator: "classifier", Err: errors.New("no classifier configured")}
	}

	started := i.now().UTC()
	since, err := i.window(ctx, started)
	if err != nil {
		return stats, err
	}

	slog.InfoContext(ctx, "Inbox sweep started", "since", since.Format(core.DateLayout), "max_messages", i.config.MaxMessages)

	messages, err := i.source.Fetch(ctx, since, i.config.MaxMessages)
	if err != nil {
		if core.IsCollaborator(err) {
			return stats, err
		}
		return stats, &core.CollaboratorError{Collaborator: "inbox", Err: err}
	}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "Inbox sweep cancelled", "checked", stats.EmailsChecked, "saved", stats.ExpensesSaved)
			return stats, err
		}

		exists, err := i.store.ExternalIDExists(ctx, msg.ID)
		if err != nil {
			return stats, fmt.Errorf("check message %s: %w", msg.ID, err)
		}
		if exists {
			stats.Skipped++
			continue
		}

		stats.EmailsChecked++
		cls, err := i.classify(ctx, msg)
		if err != nil {
			slog.WarnContext(ctx, "Email classification failed", "external_id", msg.ID, "error", err)
			continue
		}
		if !cls.IsExpense || cls.Confidence < i.config.MinConfidence {
			slog.DebugContext(ctx, "Email is not an expense",
				"external_id", msg.ID, "confidence", cls.Confidence, "reason", cls.Reason)
			continue
		}
		x := cls.Expense
		if x.Amount == nil || !x.Amount.IsPositive() {
			slog.InfoContext(ctx, "Expense email without amount", "external_id", msg.ID, "subject", msg.Subject)
			continue
		}
		stats.ExpensesFound++

		err = i.recordWithRetry(ctx, emailExpense(msg, x))
		switch {
		case err == nil:
			stats.ExpensesSaved++
		case errors.Is(err, core.ErrDuplicateIngestion):
			stats.Skipped++
		case core.IsValidation(err):
			slog.WarnContext(ctx, "Email expense rejected", "external_id", msg.ID, "error", err)
		default:
			slog.ErrorContext(ctx, "Inbox sweep aborted", "external_id", msg.ID, "error", err)
			return stats, err
		}
	}

	if err := i.store.UpdateSyncCursor(ctx, &started, nil); err != nil {
		return stats, fmt.Errorf("advance sync cursor: %w", err)
	}

	slog.InfoContext(ctx, "Inbox sweep completed",
		"emails_checked", stats.EmailsChecked,
		"expenses_found", stats.ExpensesFound,
		"expenses_saved", stats.ExpensesSaved,
		"skipped", stats.Skipped)

	return stats, nil
}

// window returns the UTC day start of the last sweep, or now minus the
// lookback when no sweep has completed yet.
func (i *Ingestor) window(ctx context.Context, now time.Time) (time.Time, error) {
	cursor, err := i.store.GetSyncCursor(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("read sync cursor: %w", err)
	}
	if cursor.LastSyncTimestamp == nil {
		return now.Add(-i.config.Lookback), nil
	}
	return core.DateOf(*cursor.LastSyncTimestamp).Time, nil
}

func (i *Ingestor) classify(ctx context.Context, msg core.InboundMessage) (core.EmailClassification, error) {
	if cls, ok := i.classified.Get(msg.ID); ok {
		return cls, nil
	}
	cls, err := i.classifier.ClassifyEmail(ctx, msg)
	if err != nil {
		return core.EmailClassification{}, err
	}
	i.classified.Set(msg.ID, cls)
	return cls, nil
}

// recordWithRetry retries storage failures with exponential backoff.
// Duplicates and validation errors are returned immediately.
func (i *Ingestor) recordWithRetry(ctx context.Context, e core.Expense) error {
	var err error
	for attempt := 0; attempt < i.config.MaxRecordAttempts; attempt++ {
		if attempt > 0 {
			delay := i.config.RetryBaseDelay << (attempt - 1)
			slog.WarnContext(ctx, "Retrying expense write",
				"external_id", e.ExternalID, "attempt", attempt+1, "delay", delay, "error", err)
			if serr := sleepContext(ctx, delay); serr != nil {
				return serr
			}
		}
		_, err = i.store.Record(ctx, e)
		if err == nil || errors.Is(err, core.ErrDuplicateIngestion) || core.IsValidation(err) {
			return err
		}
	}
	return err
}

func emailExpense(msg core.InboundMessage, x core.ExtractedExpense) core.Expense {
	notes := x.Notes
	if msg.Sender != "" {
		notes = strings.TrimSpace(notes + " [From: " + msg.Sender + "]")
	}
	e := core.Expense{
		Vendor:     x.Vendor,
		Amount:     *x.Amount,
		Currency:   x.Currency,
		Category:   x.Category,
		Source:     core.SourceEmail,
		Notes:      notes,
		ExternalID: msg.ID,
	}
	if x.Date != nil {
		e.Date = *x.Date
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
