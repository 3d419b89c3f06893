package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BudgetArchiver archives Active budgets whose period has ended
type BudgetArchiver interface {
	ArchiveExpired(ctx context.Context, now time.Time) (int, error)
}

// BudgetExpiryConfig holds configuration for the budget expiry worker
type BudgetExpiryConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultBudgetExpiryConfig returns default configuration
func DefaultBudgetExpiryConfig() BudgetExpiryConfig {
	return BudgetExpiryConfig{
		Interval: time.Hour,
		Timeout:  30 * time.Second,
	}
}

// BudgetExpiryWorker sweeps expired budgets on a fixed interval
type BudgetExpiryWorker struct {
	config   BudgetExpiryConfig
	archiver BudgetArchiver
	logger   *zap.Logger
	now      func() time.Time

	mu            sync.Mutex
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
	archivedCount int
	lastError     error
}

// NewBudgetExpiryWorker creates a new budget expiry worker
func NewBudgetExpiryWorker(config BudgetExpiryConfig, archiver BudgetArchiver, logger *zap.Logger) *BudgetExpiryWorker {
	defaults := DefaultBudgetExpiryConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &BudgetExpiryWorker{
		config:   config,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
	}
}

// Name returns the worker name
func (w *BudgetExpiryWorker) Name() string {
	return "BudgetExpiryWorker"
}

// Start runs one sweep immediately and then one per interval
func (w *BudgetExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("budget expiry worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("BudgetExpiryWorker started", zap.Duration("interval", w.config.Interval))
	go w.loop(ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (w *BudgetExpiryWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("BudgetExpiryWorker stopped", zap.Int("archived_count", w.ArchivedCount()))
	return nil
}

func (w *BudgetExpiryWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs a single archive pass
func (w *BudgetExpiryWorker) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	n, err := w.archiver.ArchiveExpired(sweepCtx, w.now())

	w.mu.Lock()
	w.lastError = err
	w.archivedCount += n
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Failed to archive expired budgets", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("Archived expired budgets", zap.Int("count", n))
	}
}

// ArchivedCount returns the total number of budgets archived since construction
func (w *BudgetExpiryWorker) ArchivedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.archivedCount
}

// LastError returns the error from the most recent sweep, if any
func (w *BudgetExpiryWorker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}
