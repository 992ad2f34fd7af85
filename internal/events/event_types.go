package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered     EventType = "user_registered"
	EventTaskCreated        EventType = "task_created"
	EventTaskUpdated        EventType = "task_updated"
	EventTaskDeleted        EventType = "task_deleted"
	EventSubmissionCreated  EventType = "submission_created"
	EventSubmissionDecided  EventType = "submission_decided"
	EventPotentialCaptured  EventType = "potential_captured"
	EventPotentialBound     EventType = "potential_bound"
	EventPotentialDismissed EventType = "potential_dismissed"
	EventSupportOpened      EventType = "support_opened"
	EventSupportClosed      EventType = "support_closed"
	EventNotificationQueued EventType = "notification_queued"
)

// AllTypes lists every event type, for subscribers interested in all of them.
var AllTypes = []EventType{
	EventUserRegistered,
	EventTaskCreated,
	EventTaskUpdated,
	EventTaskDeleted,
	EventSubmissionCreated,
	EventSubmissionDecided,
	EventPotentialCaptured,
	EventPotentialBound,
	EventPotentialDismissed,
	EventSupportOpened,
	EventSupportClosed,
	EventNotificationQueued,
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, actorID int64, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: at,
		Payload:   payload,
	}
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	UserID int64                    `json:"user_id"`
	Mode   domain.ParticipationMode `json:"mode"`
}

// TaskPayload payload for task lifecycle events.
type TaskPayload struct {
	TaskID int64             `json:"task_id"`
	Title  string            `json:"title"`
	Week   int               `json:"week"`
	Status domain.TaskStatus `json:"status"`
}

// SubmissionCreatedPayload payload.
type SubmissionCreatedPayload struct {
	SubmissionID int64              `json:"submission_id"`
	UserID       int64              `json:"user_id"`
	TaskID       int64              `json:"task_id"`
	OnTime       bool               `json:"on_time"`
	Kind         domain.PayloadKind `json:"kind"`
}

// SubmissionDecidedPayload payload.
type SubmissionDecidedPayload struct {
	SubmissionID int64                   `json:"submission_id"`
	UserID       int64                   `json:"user_id"`
	TaskID       int64                   `json:"task_id"`
	Status       domain.SubmissionStatus `json:"status"`
	Note         string                  `json:"note,omitempty"`
}

// PotentialPayload payload for potential message events.
type PotentialPayload struct {
	MessageID    int64                  `json:"message_id"`
	UserID       int64                  `json:"user_id"`
	Status       domain.PotentialStatus `json:"status"`
	SubmissionID *int64                 `json:"submission_id,omitempty"`
}

// SupportPayload payload.
type SupportPayload struct {
	RequestID int64 `json:"request_id"`
	UserID    int64 `json:"user_id"`
}

// NotificationQueuedPayload payload.
type NotificationQueuedPayload struct {
	NotificationID string                  `json:"notification_id"`
	Channel        domain.Channel          `json:"channel"`
	RecipientID    int64                   `json:"recipient_id"`
	Kind           domain.NotificationKind `json:"kind"`
}
