package gallery

import (
	"context"
	"log/slog"
	"time"
)

// Worker resyncs the gallery on a fixed interval so rows written by other
// processes become searchable without a restart.
type Worker struct {
	sync     *Synchronizer
	logger   *slog.Logger
	interval time.Duration
	onSync   func(SyncReport)
}

// NewWorker creates a periodic sync worker
func NewWorker(sync *Synchronizer, logger *slog.Logger, interval time.Duration) *Worker {
	return &Worker{
		sync:     sync,
		logger:   logger,
		interval: interval,
	}
}

// OnSync registers a callback invoked after every successful periodic sync
func (w *Worker) OnSync(fn func(SyncReport)) *Worker {
	w.onSync = fn
	return w
}

// Run starts the worker loop. A non-positive interval returns immediately.
func (w *Worker) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("gallery sync worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("gallery sync worker stopped")
			return
		case <-ticker.C:
			// failures are logged by Sync and the previous index stays live
			report, err := w.sync.Sync(ctx)
			if err == nil && w.onSync != nil {
				w.onSync(report)
			}
		}
	}
}
