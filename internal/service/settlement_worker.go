package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paidqa/internal/errorz"
	"paidqa/internal/logger"
	"paidqa/internal/metrics"
	"paidqa/internal/storage"
)

// DefaultSettlementInterval is how often the worker looks for due questions
const DefaultSettlementInterval = 10 * time.Minute

// Settler is the part of the escrow the worker drives.
type Settler interface {
	DueForSettlement(ctx context.Context) ([]*storage.Question, error)
	Settle(ctx context.Context, questionID int64) (*storage.Question, error)
	SettlementWindow() time.Duration
}

// SettlementWorker pays out accepted questions once their settlement window
// has elapsed. It runs once on start and then on every tick.
type SettlementWorker struct {
	escrow   Settler
	interval time.Duration
	metrics  *metrics.EscrowMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSettlementWorker creates a worker that settles through escrow.
func NewSettlementWorker(escrow Settler, interval time.Duration) *SettlementWorker {
	if interval <= 0 {
		interval = DefaultSettlementInterval
	}
	return &SettlementWorker{
		escrow:   escrow,
		interval: interval,
		metrics:  metrics.Escrow(),
	}
}

// Start begins the background worker
func (w *SettlementWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	logger.Debug(0, "settlement_worker_started", fmt.Sprintf("interval=%v window=%v", w.interval, w.escrow.SettlementWindow()))

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// Run immediately on start
		w.tick(ctx)

		for {
			select {
			case <-ticker.C:
				w.tick(ctx)
			case <-ctx.Done():
				logger.Debug(0, "settlement_worker_stopped", "")
				return
			}
		}
	}()
}

// Stop stops the background worker and waits for the current tick to finish
func (w *SettlementWorker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// tick runs one settlement pass; a panic only aborts this tick.
func (w *SettlementWorker) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.metrics.ObserveSettlementTick("panic")
			logger.Error(0, "settlement_worker_panic", fmt.Sprintf("panic=%v", r))
		}
	}()
	if _, err := w.RunOnce(ctx); err != nil {
		logger.Error(0, "settlement_worker_tick_failed", fmt.Sprintf("error=%v", err))
	}
}

// RunOnce settles every due question and returns how many were paid.
// Per-question failures are logged and left for the next pass.
func (w *SettlementWorker) RunOnce(ctx context.Context) (int, error) {
	due, err := w.escrow.DueForSettlement(ctx)
	if err != nil {
		w.metrics.ObserveSettlementTick("error")
		return 0, fmt.Errorf("query due questions: %w", err)
	}
	if len(due) == 0 {
		w.metrics.ObserveSettlementTick("idle")
		return 0, nil
	}

	logger.Debug(0, "settlement_worker_due", fmt.Sprintf("count=%d", len(due)))

	settled := 0
	for _, q := range due {
		if ctx.Err() != nil {
			break
		}
		if _, err := w.escrow.Settle(ctx, q.ID); err != nil {
			if errors.Is(err, errorz.ErrConflict) {
				// Settled or moved elsewhere since the query.
				logger.Debug(0, "settlement_worker_skipped", fmt.Sprintf("question_id=%d reason=%v", q.ID, err))
				continue
			}
			w.metrics.ObserveSettleFailure()
			logger.Error(0, "settlement_worker_settle_failed", fmt.Sprintf("question_id=%d error=%v", q.ID, err))
			continue
		}
		w.metrics.ObserveSettled()
		settled++
	}

	w.metrics.ObserveSettlementTick("ok")
	logger.Debug(0, "settlement_worker_settled", fmt.Sprintf("settled=%d due=%d", settled, len(due)))
	return settled, nil
}
