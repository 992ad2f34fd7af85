package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/repository"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

// Clock returns the current instant.
type Clock func() time.Time

// historyPageSize bounds one read while paging through a full history.
var historyPageSize = 200

// AdminDirectory lists administrator chat ids that receive admin notifications.
type AdminDirectory interface {
	AdminIDs() []int64
}

// base carries what every service needs: the store, the dispatcher, a
// logger and a clock.
type base struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      Clock
}

func newBase(store repository.Store, dispatcher events.Dispatcher, logger *zap.Logger, clock Clock) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return base{store: store, dispatcher: dispatcher, logger: logger, clock: clock}
}

func (b *base) now() time.Time {
	return b.clock()
}

// unit collects side effects of one transaction. Outbox rows are written
// inside the transaction; events are published only after it commits.
type unit struct {
	repos   repository.Repositories
	actorID int64
	at      time.Time
	pending []events.Event
}

func (u *unit) emit(eventType events.EventType, payload any) {
	u.pending = append(u.pending, events.New(eventType, u.actorID, u.at, payload))
}

func (u *unit) notify(ctx context.Context, channel domain.Channel, recipient int64, kind domain.NotificationKind, text string) error {
	n := &domain.Notification{
		ID:            uuid.NewString(),
		Channel:       channel,
		RecipientID:   recipient,
		Kind:          kind,
		Text:          text,
		Status:        domain.NotificationQueued,
		NextAttemptAt: u.at,
	}
	if err := u.repos.Notifications.Enqueue(ctx, n); err != nil {
		return err
	}
	u.emit(events.EventNotificationQueued, events.NotificationQueuedPayload{
		NotificationID: n.ID,
		Channel:        n.Channel,
		RecipientID:    n.RecipientID,
		Kind:           n.Kind,
	})
	return nil
}

func (u *unit) notifyAdmins(ctx context.Context, admins AdminDirectory, kind domain.NotificationKind, text string) error {
	if admins == nil {
		return nil
	}
	for _, id := range admins.AdminIDs() {
		if err := u.notify(ctx, domain.ChannelAdmin, id, kind, text); err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn in one transaction and publishes the collected events after commit.
func (b *base) inTx(ctx context.Context, actorID int64, fn func(u *unit) error) error {
	var committed *unit
	err := b.store.InTx(ctx, func(repos repository.Repositories) error {
		u := &unit{repos: repos, actorID: actorID, at: b.now()}
		if err := fn(u); err != nil {
			return err
		}
		committed = u
		return nil
	})
	if err != nil {
		return err
	}
	b.publish(ctx, committed.pending...)
	return nil
}

func (b *base) publish(ctx context.Context, evts ...events.Event) {
	if b.dispatcher == nil {
		return
	}
	for _, event := range evts {
		if err := b.dispatcher.Publish(ctx, event); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}

// notFound translates repository.ErrNotFound into a domain not-found error.
func notFound(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return err
}

func loadDialog(ctx context.Context, repos repository.Repositories, userID int64) (*domain.DialogState, error) {
	state, err := repos.Dialogs.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return state, err
}

func requireRegistered(ctx context.Context, repos repository.Repositories, userID int64) (*domain.User, error) {
	user, err := repos.Users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUserNotRegistered.WithDetails(map[string]any{"user_id": userID})
	}
	if err != nil {
		return nil, err
	}
	if !user.RegistrationCompleted {
		return nil, apperrors.ErrUserNotRegistered.WithDetails(map[string]any{"user_id": userID})
	}
	return user, nil
}

// listAllSubmissions pages through every submission matching filter, newest first.
func listAllSubmissions(ctx context.Context, repo repository.SubmissionRepository, filter repository.SubmissionFilter) ([]domain.SubmissionView, error) {
	var all []domain.SubmissionView
	filter.Limit = historyPageSize
	for filter.Offset = 0; ; filter.Offset += historyPageSize {
		page, err := repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < historyPageSize {
			return all, nil
		}
	}
}
