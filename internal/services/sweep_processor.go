package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expensebot/internal/core"
)

// SweepProcessorConfig holds configuration for the sweep processor
type SweepProcessorConfig struct {
	// Interval is how often the inbox is swept (default: 15m)
	Interval time.Duration

	// RunOnStart sweeps immediately instead of waiting for the first tick (default: true)
	RunOnStart bool
}

// DefaultSweepProcessorConfig returns sensible defaults
func DefaultSweepProcessorConfig() SweepProcessorConfig {
	return SweepProcessorConfig{
		Interval:   15 * time.Minute,
		RunOnStart: true,
	}
}

// SweepProcessor runs inbox sweeps on a fixed interval.
type SweepProcessor struct {
	sweeper Sweeper
	config  SweepProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	last    core.SweepStats
	lastErr error
	lastRun time.Time
}

func NewSweepProcessor(sweeper Sweeper, config SweepProcessorConfig) *SweepProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultSweepProcessorConfig().Interval
	}
	return &SweepProcessor{
		sweeper: sweeper,
		config:  config,
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (p *SweepProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sweep processor is already running")
	}
	if p.sweeper == nil {
		p.mu.Unlock()
		return errors.New("sweep processor has no sweeper")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sweep processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for the current sweep.
func (p *SweepProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sweep processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sweep processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SweepProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastResult returns the outcome of the most recent sweep run by the loop.
func (p *SweepProcessor) LastResult() (core.SweepStats, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.lastRun, p.lastErr
}

func (p *SweepProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Cancel an in-flight sweep when stopped.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-loopCtx.Done():
		}
	}()

	if p.config.RunOnStart {
		p.runOnce(loopCtx)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(loopCtx)
		}
	}
}

func (p *SweepProcessor) runOnce(ctx context.Context) {
	stats, err := p.sweeper.Sweep(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "Scheduled inbox sweep failed", "error", err)
	}

	p.mu.Lock()
	p.last = stats
	p.lastErr = err
	p.lastRun = time.Now()
	p.mu.Unlock()
}
