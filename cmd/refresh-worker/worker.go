package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/CourierSync/internal/broker/messages"
	"github.com/BearBump/CourierSync/internal/logger"
	"github.com/BearBump/CourierSync/internal/services/reconcile"
	"go.uber.org/zap"
)

type Refresher interface {
	RefreshTracking(ctx context.Context, orderID int64) (reconcile.RefreshResult, error)
}

type WorkerStats struct {
	Processed       int64      `json:"processed"`
	Changed         int64      `json:"changed"`
	Skipped         int64      `json:"skipped"`
	Failed          int64      `json:"failed"`
	LastError       string     `json:"lastError,omitempty"`
	LastProcessedAt *time.Time `json:"lastProcessedAt,omitempty"`
}

// refreshWorker обрабатывает order.tracking.refresh по одному сообщению.
type refreshWorker struct {
	svc Refresher
	now func() time.Time

	processed atomic.Int64
	changed   atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	lastError string
	lastAt    time.Time
}

func newRefreshWorker(svc Refresher) *refreshWorker {
	return &refreshWorker{svc: svc, now: time.Now}
}

// Handle: ошибка возвращается только для сбоев хранилища, чтобы сообщение перечиталось.
// Остальное логируется и коммитится.
func (w *refreshWorker) Handle(ctx context.Context, key, value []byte) error {
	var m messages.RefreshRequested
	if err := json.Unmarshal(value, &m); err != nil || m.OrderID <= 0 {
		logger.Get().Warn("bad refresh request, skipped", zap.ByteString("key", key), zap.ByteString("value", value))
		w.skipped.Add(1)
		return nil
	}
	return w.refresh(ctx, m.OrderID)
}

func (w *refreshWorker) refresh(ctx context.Context, orderID int64) error {
	log := logger.Get().With(zap.Int64("order_id", orderID))

	res, err := w.svc.RefreshTracking(ctx, orderID)
	w.touch(err)
	switch {
	case err == nil:
		w.processed.Add(1)
		if res.Changed {
			w.changed.Add(1)
		}
		log.Info("tracking refreshed",
			zap.String("order_status", string(res.OrderStatus)),
			zap.String("courier_status", string(res.NormalizedStatus)),
			zap.Bool("changed", res.Changed),
		)
		return nil
	case reconcile.IsNotFound(err), errors.Is(err, reconcile.ErrInvalidInput):
		w.skipped.Add(1)
		log.Info("refresh skipped", zap.Error(err))
		return nil
	case errors.Is(err, reconcile.ErrProviderUnavailable):
		w.failed.Add(1)
		log.Warn("courier unavailable, refresh dropped", zap.Error(err))
		return nil
	default:
		w.failed.Add(1)
		return err
	}
}

func (w *refreshWorker) touch(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAt = w.now().UTC()
	if err != nil {
		w.lastError = err.Error()
	}
}

func (w *refreshWorker) Stats() WorkerStats {
	s := WorkerStats{
		Processed: w.processed.Load(),
		Changed:   w.changed.Load(),
		Skipped:   w.skipped.Load(),
		Failed:    w.failed.Load(),
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s.LastError = w.lastError
	if !w.lastAt.IsZero() {
		at := w.lastAt
		s.LastProcessedAt = &at
	}
	return s
}
