package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/config"
	"github.com/danilaloko/eco-bot/internal/repository"
)

// RetentionWorker removes processed potential messages and finished outbox
// rows once they age out.
type RetentionWorker struct {
	store  repository.Store
	cfg    config.RetentionConfig
	logger *zap.Logger
	clock  func() time.Time
}

// SweepResult counts rows removed by one sweep.
type SweepResult struct {
	PotentialMessages int64
	Notifications     int64
}

// NewRetentionWorker creates the sweeper.
func NewRetentionWorker(store repository.Store, cfg config.RetentionConfig, logger *zap.Logger, clock func() time.Time) *RetentionWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &RetentionWorker{store: store, cfg: cfg, logger: logger, clock: clock}
}

// Run sweeps on every interval until ctx is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("retention sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes expired rows once. A zero age disables that category.
func (w *RetentionWorker) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := w.clock()
	repos := w.store.Repos()

	if w.cfg.PotentialMessageAge > 0 {
		n, err := repos.Potential.DeleteProcessedBefore(ctx, now.Add(-w.cfg.PotentialMessageAge))
		if err != nil {
			return result, err
		}
		result.PotentialMessages = n
	}
	if w.cfg.NotificationAge > 0 {
		n, err := repos.Notifications.DeleteFinishedBefore(ctx, now.Add(-w.cfg.NotificationAge))
		if err != nil {
			return result, err
		}
		result.Notifications = n
	}
	if result.PotentialMessages > 0 || result.Notifications > 0 {
		w.logger.Info("retention sweep",
			zap.Int64("potential_messages", result.PotentialMessages),
			zap.Int64("notifications", result.Notifications))
	}
	return result, nil
}
