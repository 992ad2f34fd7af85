package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/config"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/notify"
	"github.com/danilaloko/eco-bot/internal/observability"
	"github.com/danilaloko/eco-bot/internal/repository"
)

const defaultLease = 2 * time.Minute

// NotificationWorkerDependencies bundles collaborators of a delivery worker.
type NotificationWorkerDependencies struct {
	Store    repository.Store
	Notifier notify.Notifier
	Signal   notify.Signal
	Channel  domain.Channel
	Config   config.NotificationConfig
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Clock    func() time.Time
	// Lease bounds how long a claimed row stays invisible to other workers.
	Lease time.Duration
}

// NotificationWorker drains the outbox for one channel.
type NotificationWorker struct {
	store    repository.Store
	notifier notify.Notifier
	signal   notify.Signal
	channel  domain.Channel
	cfg      config.NotificationConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	clock    func() time.Time
	lease    time.Duration
}

// NewNotificationWorker builds a worker, filling unset tuning values.
func NewNotificationWorker(deps NotificationWorkerDependencies) *NotificationWorker {
	cfg := deps.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	w := &NotificationWorker{
		store:    deps.Store,
		notifier: deps.Notifier,
		signal:   deps.Signal,
		channel:  deps.Channel,
		cfg:      cfg,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		lease:    deps.Lease,
	}
	if w.signal == nil {
		w.signal = notify.NopSignal{}
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.clock == nil {
		w.clock = time.Now
	}
	if w.lease <= 0 {
		w.lease = defaultLease
	}
	w.logger = w.logger.With(zap.String("channel", string(w.channel)))
	return w
}

// Run delivers notifications until ctx is cancelled. It wakes on every poll
// tick and whenever the signal fires.
func (w *NotificationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	wake := w.signal.Subscribe(ctx, w.channel)

	w.logger.Info("notification worker started", zap.Duration("poll_interval", w.cfg.PollInterval))
	for {
		if _, err := w.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("outbox drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopped")
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// DrainOnce claims and delivers one batch, returning the number delivered.
func (w *NotificationWorker) DrainOnce(ctx context.Context) (int, error) {
	now := w.clock()
	claimed, err := w.store.Repos().Notifications.Claim(ctx, w.channel, now, w.lease, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	repo := w.store.Repos().Notifications
	delivered := 0
	for _, n := range claimed {
		if err := ctx.Err(); err != nil {
			// Unsent rows become due again when their lease expires.
			return delivered, err
		}
		sendErr := w.notifier.Notify(ctx, n.RecipientID, n.Text)
		if sendErr == nil {
			if err := repo.MarkSent(ctx, n.ID, w.clock()); err != nil {
				return delivered, err
			}
			w.metrics.RecordDelivery(string(w.channel), "sent")
			delivered++
			continue
		}
		if err := w.handleFailure(ctx, repo, n, sendErr); err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}

func (w *NotificationWorker) handleFailure(ctx context.Context, repo repository.NotificationRepository, n domain.Notification, sendErr error) error {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.Int64("recipient_id", n.RecipientID),
		zap.String("kind", string(n.Kind)),
		zap.Int("attempts", n.Attempts),
		zap.Error(sendErr),
	}
	if n.Attempts >= w.cfg.MaxAttempts || errors.Is(sendErr, notify.ErrUndeliverable) {
		w.logger.Error("notification delivery abandoned", fields...)
		w.metrics.RecordDelivery(string(w.channel), "failed")
		return repo.MarkFailed(ctx, n.ID, sendErr.Error())
	}
	next := w.clock().Add(time.Duration(n.Attempts) * w.cfg.RetryBackoff)
	w.logger.Warn("notification delivery failed, retrying", append(fields, zap.Time("next_attempt_at", next))...)
	w.metrics.RecordDelivery(string(w.channel), "retry")
	return repo.Reschedule(ctx, n.ID, next, sendErr.Error())
}
