package domain

// Overview aggregates dashboard counters.
type Overview struct {
	UsersTotal          int                       `json:"users_total"`
	UsersRegistered     int                       `json:"users_registered"`
	UsersByMode         map[ParticipationMode]int `json:"users_by_mode"`
	TasksByStatus       map[TaskStatus]int        `json:"tasks_by_status"`
	SubmissionsByStatus map[SubmissionStatus]int  `json:"submissions_by_status"`
	SubmissionsOnTime   int                       `json:"submissions_on_time"`
	SubmissionsLate     int                       `json:"submissions_late"`
	PotentialByStatus   map[PotentialStatus]int   `json:"potential_by_status"`
	SupportOpen         int                       `json:"support_open"`
}

// TaskStats summarizes submissions for one task.
type TaskStats struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Approved    int `json:"approved"`
	Rejected    int `json:"rejected"`
	OnTime      int `json:"on_time"`
	UniqueUsers int `json:"unique_users"`
}

// Progress summarizes a participant's standing.
type Progress struct {
	CompletedOnTime int `json:"completed_on_time"`
	OpenTasks       int `json:"open_tasks"`
}

// PotentialSummary counts unhandled potential messages by payload label.
type PotentialSummary struct {
	Total   int            `json:"total"`
	ByLabel map[string]int `json:"by_label"`
}
