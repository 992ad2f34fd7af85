package domain

import "time"

// SubmissionStatus enumerates moderation states.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Terminal reports whether no further moderation transition is allowed.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

// Submission is a participant's report for a task.
type Submission struct {
	ID            int64
	UserID        int64
	TaskID        int64
	Payload       Payload
	ReceivedAt    time.Time
	OnTime        bool
	Status        SubmissionStatus
	RejectionNote *string
	DecidedAt     *time.Time
	DecidedBy     *int64
	// SourceMessageID links a submission created by binding a potential message.
	SourceMessageID *int64
	CreatedAt       time.Time
}

// SubmissionView is a submission joined with task and participant fields.
type SubmissionView struct {
	Submission
	TaskTitle string
	UserName  string
}
