package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"expensebot/internal/amqp"
	"expensebot/internal/core"
)

type stubSweeper struct {
	stats core.SweepStats
	err   error
	calls int
}

func (s *stubSweeper) Sweep(context.Context) (core.SweepStats, error) {
	s.calls++
	return s.stats, s.err
}

func TestHandleSweepRequest(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		wantCount int
	}{
		{name: "success", wantCount: 1},
		{
			name: "missing credentials is acknowledged",
			err:  &core.CollaboratorError{Collaborator: "gmail", Err: fmt.Errorf("%w: token", core.ErrMissingCredentials)},
		},
		{
			name: "collaborator failure is acknowledged",
			err:  &core.CollaboratorError{Collaborator: "gmail", Err: errors.New("503")},
		},
		{
			name:    "storage failure is requeued",
			err:     &core.StorageError{Op: "record", Err: errors.New("disk full")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &stubSweeper{stats: core.SweepStats{EmailsChecked: 3, ExpensesSaved: 1}, err: tt.err}
			w := NewSweepWorker(sw)

			err := w.HandleSweepRequest(context.Background(), amqp.NewSweepRequestMessage("test"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleSweepRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !core.IsStorage(err) {
				t.Errorf("expected storage error to be preserved, got %v", err)
			}
			if sw.calls != 1 {
				t.Errorf("sweeper called %d times, want 1", sw.calls)
			}
			handled, stats, _ := w.Handled()
			if handled != tt.wantCount {
				t.Errorf("handled = %d, want %d", handled, tt.wantCount)
			}
			if tt.wantCount > 0 && stats.ExpensesSaved != 1 {
				t.Errorf("last stats = %+v", stats)
			}
		})
	}
}

func TestStartupSweep(t *testing.T) {
	w := NewSweepWorker(&stubSweeper{})
	if err := w.StartupSweep(context.Background()); err != nil {
		t.Fatalf("StartupSweep() error = %v", err)
	}

	failing := NewSweepWorker(&stubSweeper{err: context.Canceled})
	if err := failing.StartupSweep(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("StartupSweep() error = %v, want context.Canceled", err)
	}
}
