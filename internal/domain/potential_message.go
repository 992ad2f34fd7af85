package domain

import "time"

// PotentialStatus enumerates processing states of off-context content.
type PotentialStatus string

const (
	PotentialUnhandled PotentialStatus = "unhandled"
	PotentialBound     PotentialStatus = "bound"
	PotentialDismissed PotentialStatus = "dismissed"
)

// PotentialMessage is content received outside any expected dialog step.
type PotentialMessage struct {
	ID           int64
	UserID       int64
	Payload      Payload
	ReceivedAt   time.Time
	Status       PotentialStatus
	SubmissionID *int64
	ProcessedBy  *int64
	ProcessedAt  *time.Time
}
