package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

// RouteKind says which component handled an inbound participant message.
type RouteKind string

const (
	RouteRegistration RouteKind = "registration"
	RouteSubmission   RouteKind = "submission"
	RouteSupport      RouteKind = "support"
	RouteCaptured     RouteKind = "captured"
)

// Inbound is a participant message as seen by the router.
type Inbound struct {
	Sender     domain.Identity
	Payload    domain.Payload
	ReceivedAt time.Time
}

// RouteOutcome describes what happened to an inbound message. It is returned
// together with validation errors so the caller can re-prompt.
type RouteOutcome struct {
	Kind         RouteKind
	Registration *RegistrationProgress
	Submission   *SubmitResult
	Support      *domain.SupportRequest
	Potential    *domain.PotentialMessage
}

// InboundRouter classifies participant messages by the sender's dialog state.
type InboundRouter struct {
	registration *RegistrationService
	submissions  *SubmissionService
	support      *SupportService
	potential    *PotentialMessageService
	logger       *zap.Logger
}

// InboundRouterDependencies bundles the services the router dispatches to.
type InboundRouterDependencies struct {
	Registration *RegistrationService
	Submissions  *SubmissionService
	Support      *SupportService
	Potential    *PotentialMessageService
	Logger       *zap.Logger
}

// NewInboundRouter constructs the router.
func NewInboundRouter(deps InboundRouterDependencies) *InboundRouter {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboundRouter{
		registration: deps.Registration,
		submissions:  deps.Submissions,
		support:      deps.Support,
		potential:    deps.Potential,
		logger:       logger,
	}
}

// Route dispatches one message: mid-registration to the registration dialog,
// awaiting a report to the submission engine, awaiting a support message to
// support, anything else to the potential message collector. Unregistered
// senders without a dialog are started on registration instead of captured.
func (r *InboundRouter) Route(ctx context.Context, in Inbound) (*RouteOutcome, error) {
	user, err := r.registration.Touch(ctx, in.Sender)
	if err != nil {
		return nil, err
	}
	state, err := r.registration.Current(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	flow := domain.FlowNone
	if state != nil {
		flow = state.Flow
	}

	switch flow {
	case domain.FlowRegistration:
		outcome := &RouteOutcome{Kind: RouteRegistration, Registration: &RegistrationProgress{Step: state.Step}}
		if in.Payload.Kind != domain.PayloadText || in.Payload.Text == nil {
			return outcome, apperrors.NewValidationError("please answer with text", map[string]any{"step": state.Step})
		}
		progress, err := r.registration.Advance(ctx, user.ID, in.Payload.Text.Body)
		if err != nil {
			return outcome, err
		}
		outcome.Registration = progress
		return outcome, nil
	case domain.FlowSubmission:
		outcome := &RouteOutcome{Kind: RouteSubmission}
		result, err := r.submissions.SubmitFromDialog(ctx, user.ID, in.Payload, in.ReceivedAt)
		if err != nil {
			return outcome, err
		}
		outcome.Submission = result
		return outcome, nil
	case domain.FlowSupport:
		outcome := &RouteOutcome{Kind: RouteSupport}
		if in.Payload.Kind != domain.PayloadText || in.Payload.Text == nil {
			return outcome, apperrors.NewValidationError("please describe your question in text", nil)
		}
		req, err := r.support.Open(ctx, user.ID, in.Payload.Text.Body)
		if err != nil {
			return outcome, err
		}
		outcome.Support = req
		return outcome, nil
	}

	if !user.RegistrationCompleted {
		progress, err := r.registration.Start(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return &RouteOutcome{Kind: RouteRegistration, Registration: progress}, nil
	}

	pm, err := r.potential.Capture(ctx, user.ID, in.Payload, in.ReceivedAt)
	if err != nil {
		return &RouteOutcome{Kind: RouteCaptured}, err
	}
	r.logger.Debug("inbound captured", zap.Int64("user_id", user.ID), zap.Int64("message_id", pm.ID))
	return &RouteOutcome{Kind: RouteCaptured, Potential: pm}, nil
}

// Cancel leaves whatever dialog the user is in.
func (r *InboundRouter) Cancel(ctx context.Context, userID int64) error {
	return r.registration.Cancel(ctx, userID)
}
