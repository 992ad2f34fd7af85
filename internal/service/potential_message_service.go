package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/repository"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

// PotentialMessageService captures content that arrives outside any dialog.
type PotentialMessageService struct {
	base
	admins AdminDirectory
}

// PotentialMessageDependencies bundles collaborators for the collector.
type PotentialMessageDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
	Admins     AdminDirectory
}

// NewPotentialMessageService constructs the service.
func NewPotentialMessageService(deps PotentialMessageDependencies) *PotentialMessageService {
	return &PotentialMessageService{
		base:   newBase(deps.Store, deps.Dispatcher, deps.Logger, deps.Clock),
		admins: deps.Admins,
	}
}

// Capture always stores a new unhandled record; identical content is not deduplicated.
func (s *PotentialMessageService) Capture(ctx context.Context, userID int64, payload domain.Payload, receivedAt time.Time) (*domain.PotentialMessage, error) {
	if err := payload.Validate(); err != nil {
		return nil, apperrors.ErrInvalidPayload.WithDetails(map[string]any{"reason": err.Error()})
	}
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	pm := &domain.PotentialMessage{
		UserID:     userID,
		Payload:    payload,
		ReceivedAt: receivedAt,
		Status:     domain.PotentialUnhandled,
	}
	err := s.inTx(ctx, userID, func(u *unit) error {
		user, err := u.repos.Users.Get(ctx, userID)
		if err != nil {
			return notFound(err, "user", map[string]any{"user_id": userID})
		}
		if err := u.repos.Potential.Create(ctx, pm); err != nil {
			return err
		}
		u.emit(events.EventPotentialCaptured, events.PotentialPayload{MessageID: pm.ID, UserID: userID, Status: pm.Status})
		return u.notifyAdmins(ctx, s.admins, domain.NotifyAdminNewPotential, adminNewPotentialText(pm, user))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("potential message captured",
		zap.Int64("message_id", pm.ID),
		zap.Int64("user_id", userID),
		zap.String("kind", pm.Payload.Label()))
	return pm, nil
}

// ListUnhandled returns unhandled messages, oldest first.
func (s *PotentialMessageService) ListUnhandled(ctx context.Context, limit int) ([]domain.PotentialMessage, error) {
	return s.store.Repos().Potential.ListByStatus(ctx, domain.PotentialUnhandled, limit)
}

// Get returns a potential message by id.
func (s *PotentialMessageService) Get(ctx context.Context, id int64) (*domain.PotentialMessage, error) {
	pm, err := s.store.Repos().Potential.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "potential message", map[string]any{"message_id": id})
	}
	return pm, nil
}
