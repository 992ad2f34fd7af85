package domain

import "time"

// TaskStatus enumerates publication states of a task.
type TaskStatus string

const (
	TaskStatusOpen     TaskStatus = "open"
	TaskStatusArchived TaskStatus = "archived"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusOpen || s == TaskStatusArchived
}

// Task is a unit of work for a challenge week. OpensAt schedules
// publication; nil means the task is visible from creation.
type Task struct {
	ID          int64
	Title       string
	Description string
	Link        *string
	Week        int
	Deadline    time.Time
	OpensAt     *time.Time
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOnTime reports whether content received at t meets the deadline.
func (t *Task) IsOnTime(received time.Time) bool {
	return !received.After(t.Deadline)
}

// IsPublished reports whether participants can see the task at now.
func (t *Task) IsPublished(now time.Time) bool {
	return t.OpensAt == nil || !t.OpensAt.After(now)
}

// AcceptsReports reports whether the task is open and published at now.
func (t *Task) AcceptsReports(now time.Time) bool {
	return t.Status == TaskStatusOpen && t.IsPublished(now)
}
