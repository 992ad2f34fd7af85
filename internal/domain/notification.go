package domain

import "time"

// Channel selects which front end delivers a notification.
type Channel string

const (
	ChannelParticipant Channel = "participant"
	ChannelAdmin       Channel = "admin"
)

// NotificationStatus enumerates outbox delivery states.
type NotificationStatus string

const (
	NotificationQueued  NotificationStatus = "queued"
	NotificationSending NotificationStatus = "sending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// NotificationKind tags the reason a notification was queued.
type NotificationKind string

const (
	NotifySubmissionReceived NotificationKind = "submission_received"
	NotifySubmissionDecided  NotificationKind = "submission_decided"
	NotifyPotentialBound     NotificationKind = "potential_bound"
	NotifyRegistrationDone   NotificationKind = "registration_done"
	NotifyAdminNewSubmission NotificationKind = "admin_new_submission"
	NotifyAdminNewPotential  NotificationKind = "admin_new_potential"
	NotifyAdminSupport       NotificationKind = "admin_support"
	NotifySupportClosed      NotificationKind = "support_closed"
)

// Notification is an outbox row delivered after the owning transaction commits.
type Notification struct {
	ID            string
	Channel       Channel
	RecipientID   int64
	Kind          NotificationKind
	Text          string
	Status        NotificationStatus
	Attempts      int
	LastError     *string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	SentAt        *time.Time
}
