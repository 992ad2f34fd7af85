package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/notify"
)

// NotificationService reacts to committed domain events: it records them in
// the log and wakes the outbox workers when a notification is queued.
type NotificationService struct {
	dispatcher events.Dispatcher
	signal     notify.Signal
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, signal notify.Signal, logger *zap.Logger) *NotificationService {
	if signal == nil {
		signal = notify.NopSignal{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		signal:     signal,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllTypes {
		n.dispatcher.Subscribe(eventType, n.handleAudit)
	}
	n.dispatcher.Subscribe(events.EventNotificationQueued, n.handleNotificationQueued)
}

func (n *NotificationService) handleAudit(_ context.Context, event events.Event) error {
	n.logger.Info("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
		zap.Int64("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleNotificationQueued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationQueuedPayload)
	if !ok {
		return nil
	}
	if err := n.signal.Raise(ctx, payload.Channel); err != nil {
		// Workers still poll, so a lost wake-up only delays delivery.
		n.logger.Warn("outbox signal failed",
			zap.String("channel", string(payload.Channel)),
			zap.String("notification_id", payload.NotificationID),
			zap.Error(err))
	}
	return nil
}
