package dto

import "time"

// TaskResponse is the dashboard view of a task.
type TaskResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Link        *string    `json:"link,omitempty"`
	Week        int        `json:"week"`
	Deadline    time.Time  `json:"deadline"`
	OpensAt     *time.Time `json:"opens_at,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PayloadResponse flattens report content for display.
type PayloadResponse struct {
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Preview  string `json:"preview"`
	FileID   string `json:"file_id,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
}

// SubmissionResponse is the dashboard view of a report.
type SubmissionResponse struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	UserName        string          `json:"user_name,omitempty"`
	TaskID          int64           `json:"task_id"`
	TaskTitle       string          `json:"task_title,omitempty"`
	Payload         PayloadResponse `json:"payload"`
	ReceivedAt      time.Time       `json:"received_at"`
	OnTime          bool            `json:"on_time"`
	Status          string          `json:"status"`
	RejectionNote   *string         `json:"rejection_note,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	DecidedBy       *int64          `json:"decided_by,omitempty"`
	SourceMessageID *int64          `json:"source_message_id,omitempty"`
}

// UserResponse is the dashboard view of a participant.
type UserResponse struct {
	ID                    int64     `json:"id"`
	Username              string    `json:"username,omitempty"`
	FullName              string    `json:"full_name"`
	Mode                  string    `json:"mode,omitempty"`
	FamilySize            *int      `json:"family_size,omitempty"`
	HasChildren           *bool     `json:"has_children,omitempty"`
	ChildAgeBuckets       []string  `json:"child_age_buckets,omitempty"`
	RegistrationCompleted bool      `json:"registration_completed"`
	CreatedAt             time.Time `json:"created_at"`
}
