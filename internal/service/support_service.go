package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/repository"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

const maxSupportMessageLength = 2000

// SupportService relays participant questions to the organizers.
type SupportService struct {
	base
	admins AdminDirectory
}

// SupportDependencies bundles collaborators for the support service.
type SupportDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
	Admins     AdminDirectory
}

// NewSupportService constructs the service.
func NewSupportService(deps SupportDependencies) *SupportService {
	return &SupportService{
		base:   newBase(deps.Store, deps.Dispatcher, deps.Logger, deps.Clock),
		admins: deps.Admins,
	}
}

// Begin puts the user into the support dialog; the next text message becomes the request.
func (s *SupportService) Begin(ctx context.Context, userID int64) error {
	return s.inTx(ctx, userID, func(u *unit) error {
		if _, err := requireRegistered(ctx, u.repos, userID); err != nil {
			return err
		}
		return u.repos.Dialogs.Save(ctx, domain.NewDialogState(userID, domain.FlowSupport, domain.StepAwaitSupportMessage))
	})
}

// Open stores a support request and alerts administrators.
func (s *SupportService) Open(ctx context.Context, userID int64, text string) (*domain.SupportRequest, error) {
	message := strings.TrimSpace(text)
	if message == "" || utf8.RuneCountInString(message) > maxSupportMessageLength {
		return nil, apperrors.NewValidationError("support message must be between 1 and 2000 characters", nil)
	}
	req := &domain.SupportRequest{UserID: userID, Message: message, Status: domain.SupportOpen}
	err := s.inTx(ctx, userID, func(u *unit) error {
		user, err := requireRegistered(ctx, u.repos, userID)
		if err != nil {
			return err
		}
		if err := u.repos.Support.Create(ctx, req); err != nil {
			return err
		}
		state, err := loadDialog(ctx, u.repos, userID)
		if err != nil {
			return err
		}
		if state != nil && state.Flow == domain.FlowSupport {
			if err := u.repos.Dialogs.Delete(ctx, userID); err != nil {
				return err
			}
		}
		u.emit(events.EventSupportOpened, events.SupportPayload{RequestID: req.ID, UserID: userID})
		return u.notifyAdmins(ctx, s.admins, domain.NotifyAdminSupport, adminSupportText(req, user))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("support request opened", zap.Int64("request_id", req.ID), zap.Int64("user_id", userID))
	return req, nil
}

// ListOpen returns unresolved requests, oldest first.
func (s *SupportService) ListOpen(ctx context.Context) ([]domain.SupportRequest, error) {
	return s.store.Repos().Support.ListOpen(ctx)
}

// Close resolves a request and tells the participant.
func (s *SupportService) Close(ctx context.Context, adminID, requestID int64) (*domain.SupportRequest, error) {
	var closed *domain.SupportRequest
	err := s.inTx(ctx, adminID, func(u *unit) error {
		req, err := u.repos.Support.Get(ctx, requestID)
		if err != nil {
			return notFound(err, "support request", map[string]any{"request_id": requestID})
		}
		if err := u.repos.Support.Close(ctx, requestID, adminID, u.at); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return apperrors.ErrAlreadyProcessed.WithDetails(map[string]any{"request_id": requestID})
			}
			return err
		}
		at := u.at
		req.Status = domain.SupportClosed
		req.ClosedBy = &adminID
		req.ClosedAt = &at
		closed = req
		u.emit(events.EventSupportClosed, events.SupportPayload{RequestID: req.ID, UserID: req.UserID})
		return u.notify(ctx, domain.ChannelParticipant, req.UserID, domain.NotifySupportClosed, supportClosedText(req))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("support request closed", zap.Int64("request_id", requestID), zap.Int64("admin_id", adminID))
	return closed, nil
}
