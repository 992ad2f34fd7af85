package domain

import "time"

// SupportStatus enumerates support request states.
type SupportStatus string

const (
	SupportOpen   SupportStatus = "open"
	SupportClosed SupportStatus = "closed"
)

// SupportRequest is a participant question addressed to the organizers.
type SupportRequest struct {
	ID        int64
	UserID    int64
	Message   string
	Status    SupportStatus
	CreatedAt time.Time
	ClosedAt  *time.Time
	ClosedBy  *int64
}
