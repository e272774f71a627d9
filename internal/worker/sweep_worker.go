package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expensebot/internal/amqp"
	"expensebot/internal/core"
)

// Sweeper runs one inbox sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (core.SweepStats, error)
}

// SweepWorker runs inbox sweeps requested over AMQP and at startup.
type SweepWorker struct {
	sweeper Sweeper

	mu       sync.Mutex
	handled  int
	lastRun  time.Time
	lastStat core.SweepStats
}

func NewSweepWorker(sweeper Sweeper) *SweepWorker {
	return &SweepWorker{sweeper: sweeper}
}

// HandleSweepRequest processes one request from the queue. Only storage
// failures are returned, so the message is requeued once; collaborator
// failures are logged and left to the next scheduled sweep.
func (w *SweepWorker) HandleSweepRequest(ctx context.Context, msg *amqp.SweepRequestMessage) error {
	slog.InfoContext(ctx, "Processing sweep request",
		"request_id", msg.ID,
		"reason", msg.Reason,
		"requested_at", msg.RequestedAt)

	stats, err := w.run(ctx)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "Sweep request completed",
			"request_id", msg.ID,
			"emails_checked", stats.EmailsChecked,
			"expenses_found", stats.ExpensesFound,
			"expenses_saved", stats.ExpensesSaved)
		return nil
	case errors.Is(err, core.ErrMissingCredentials):
		slog.WarnContext(ctx, "Inbox credentials missing, dropping sweep request", "request_id", msg.ID, "error", err)
		return nil
	case core.IsCollaborator(err):
		slog.ErrorContext(ctx, "Inbox unavailable, sweep request dropped", "request_id", msg.ID, "error", err)
		return nil
	default:
		return fmt.Errorf("sweep for request %s: %w", msg.ID, err)
	}
}

// StartupSweep catches up on messages that arrived while the worker was
// down. Failures are logged and do not stop the worker.
func (w *SweepWorker) StartupSweep(ctx context.Context) error {
	slog.InfoContext(ctx, "Performing startup sweep...")
	stats, err := w.run(ctx)
	if err != nil {
		return fmt.Errorf("startup sweep: %w", err)
	}
	slog.InfoContext(ctx, "Startup sweep completed",
		"emails_checked", stats.EmailsChecked,
		"expenses_found", stats.ExpensesFound,
		"expenses_saved", stats.ExpensesSaved,
		"skipped", stats.Skipped)
	return nil
}

// Handled reports how many sweeps the worker ran and the latest result.
func (w *SweepWorker) Handled() (int, core.SweepStats, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handled, w.lastStat, w.lastRun
}

func (w *SweepWorker) run(ctx context.Context) (core.SweepStats, error) {
	stats, err := w.sweeper.Sweep(ctx)
	if err != nil {
		return stats, err
	}
	w.mu.Lock()
	w.handled++
	w.lastStat = stats
	w.lastRun = time.Now()
	w.mu.Unlock()
	return stats, nil
}
