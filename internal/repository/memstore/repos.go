package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/repository"
)

func copyUser(u domain.User) domain.User {
	if u.ChildAgeBuckets != nil {
		u.ChildAgeBuckets = append([]domain.ChildAgeBucket(nil), u.ChildAgeBuckets...)
	}
	return u
}

type userRepo struct{ s *session }

func (r *userRepo) Touch(_ context.Context, identity domain.Identity) (*domain.User, bool, error) {
	var (
		out     domain.User
		created bool
	)
	err := r.s.run(func(d *dataset) error {
		now := r.s.now()
		user, ok := d.users[identity.ID]
		if !ok {
			user = domain.User{ID: identity.ID, CreatedAt: now}
			created = true
		}
		user.Username = identity.Username
		user.UpdatedAt = now
		d.users[identity.ID] = user
		out = copyUser(user)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

func (r *userRepo) Get(_ context.Context, id int64) (*domain.User, error) {
	var out domain.User
	err := r.s.run(func(d *dataset) error {
		user, ok := d.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyUser(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) Complete(_ context.Context, user *domain.User) error {
	return r.s.run(func(d *dataset) error {
		stored, ok := d.users[user.ID]
		if !ok || stored.RegistrationCompleted {
			return repository.ErrStaleState
		}
		candidate := copyUser(*user)
		if !candidate.FamilyFieldsConsistent() {
			return fmt.Errorf("users_family_fields check violated for user %d", user.ID)
		}
		stored.Surname = candidate.Surname
		stored.GivenName = candidate.GivenName
		stored.Mode = candidate.Mode
		stored.FamilySize = candidate.FamilySize
		stored.HasChildren = candidate.HasChildren
		stored.ChildAgeBuckets = candidate.ChildAgeBuckets
		stored.RegistrationCompleted = true
		stored.UpdatedAt = r.s.now()
		d.users[user.ID] = stored
		user.RegistrationCompleted = true
		user.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

type taskRepo struct{ s *session }

func titleTaken(d *dataset, title string, except int64) bool {
	key := strings.ToLower(strings.TrimSpace(title))
	for id, t := range d.tasks {
		if id != except && strings.ToLower(strings.TrimSpace(t.Title)) == key {
			return true
		}
	}
	return false
}

func (r *taskRepo) Create(_ context.Context, task *domain.Task) error {
	return r.s.run(func(d *dataset) error {
		if titleTaken(d, task.Title, 0) {
			return fmt.Errorf("%w: tasks_title_lower_key", repository.ErrDuplicate)
		}
		d.taskSeq++
		now := r.s.now()
		task.ID = d.taskSeq
		task.CreatedAt = now
		task.UpdatedAt = now
		d.tasks[task.ID] = *task
		return nil
	})
}

func (r *taskRepo) Update(_ context.Context, task *domain.Task) error {
	return r.s.run(func(d *dataset) error {
		stored, ok := d.tasks[task.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if titleTaken(d, task.Title, task.ID) {
			return fmt.Errorf("%w: tasks_title_lower_key", repository.ErrDuplicate)
		}
		task.CreatedAt = stored.CreatedAt
		task.UpdatedAt = r.s.now()
		d.tasks[task.ID] = *task
		return nil
	})
}

func (r *taskRepo) Get(_ context.Context, id int64) (*domain.Task, error) {
	var out domain.Task
	err := r.s.run(func(d *dataset) error {
		task, ok := d.tasks[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForShare needs no lock: transactions are already serialized.
func (r *taskRepo) GetForShare(ctx context.Context, id int64) (*domain.Task, error) {
	return r.Get(ctx, id)
}

// GetForUpdate needs no lock either.
func (r *taskRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Task, error) {
	return r.Get(ctx, id)
}

func (r *taskRepo) GetByTitle(_ context.Context, title string) (*domain.Task, error) {
	var out *domain.Task
	err := r.s.run(func(d *dataset) error {
		key := strings.ToLower(strings.TrimSpace(title))
		for _, t := range d.tasks {
			if strings.ToLower(strings.TrimSpace(t.Title)) == key {
				task := t
				out = &task
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *taskRepo) Delete(_ context.Context, id int64) error {
	return r.s.run(func(d *dataset) error {
		if _, ok := d.tasks[id]; !ok {
			return repository.ErrNotFound
		}
		for _, sub := range d.submissions {
			if sub.TaskID == id {
				return fmt.Errorf("%w: submissions_task_id_fkey", repository.ErrReferenced)
			}
		}
		delete(d.tasks, id)
		return nil
	})
}

func (r *taskRepo) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	var out []domain.Task
	err := r.s.run(func(d *dataset) error {
		for _, t := range d.tasks {
			if filter.Status != nil && t.Status != *filter.Status {
				continue
			}
			if filter.Week != nil && t.Week != *filter.Week {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		if !a.Deadline.Equal(b.Deadline) {
			return a.Deadline.Before(b.Deadline)
		}
		return a.ID < b.ID
	})
	return out, err
}

type submissionRepo struct{ s *session }

func (r *submissionRepo) Create(_ context.Context, sub *domain.Submission) error {
	return r.s.run(func(d *dataset) error {
		if _, ok := d.users[sub.UserID]; !ok {
			return fmt.Errorf("%w: submissions_user_id_fkey", repository.ErrReferenced)
		}
		if _, ok := d.tasks[sub.TaskID]; !ok {
			return fmt.Errorf("%w: submissions_task_id_fkey", repository.ErrReferenced)
		}
		if sub.Status != domain.SubmissionRejected {
			for _, existing := range d.submissions {
				if existing.UserID == sub.UserID && existing.TaskID == sub.TaskID && existing.Status != domain.SubmissionRejected {
					return fmt.Errorf("%w: submissions_active_user_task_key", repository.ErrDuplicate)
				}
			}
		}
		d.submissionSeq++
		sub.ID = d.submissionSeq
		sub.CreatedAt = r.s.now()
		d.submissions[sub.ID] = *sub
		return nil
	})
}

func (r *submissionRepo) Get(_ context.Context, id int64) (*domain.Submission, error) {
	var out domain.Submission
	err := r.s.run(func(d *dataset) error {
		sub, ok := d.submissions[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *submissionRepo) FindActive(_ context.Context, userID, taskID int64) (*domain.Submission, error) {
	var out *domain.Submission
	err := r.s.run(func(d *dataset) error {
		for _, sub := range d.submissions {
			if sub.UserID == userID && sub.TaskID == taskID && sub.Status != domain.SubmissionRejected {
				found := sub
				out = &found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *submissionRepo) Decide(_ context.Context, id int64, decision repository.Decision) error {
	return r.s.run(func(d *dataset) error {
		sub, ok := d.submissions[id]
		if !ok || sub.Status != domain.SubmissionPending {
			return repository.ErrStaleState
		}
		decidedBy := decision.DecidedBy
		decidedAt := decision.DecidedAt
		sub.Status = decision.Status
		sub.RejectionNote = decision.Note
		sub.DecidedBy = &decidedBy
		sub.DecidedAt = &decidedAt
		d.submissions[id] = sub
		return nil
	})
}

func (r *submissionRepo) CountByTask(_ context.Context, taskID int64) (int, error) {
	count := 0
	err := r.s.run(func(d *dataset) error {
		for _, sub := range d.submissions {
			if sub.TaskID == taskID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *submissionRepo) List(_ context.Context, filter repository.SubmissionFilter) ([]domain.SubmissionView, error) {
	var out []domain.SubmissionView
	err := r.s.run(func(d *dataset) error {
		statuses := map[domain.SubmissionStatus]bool{}
		for _, st := range filter.Statuses {
			statuses[st] = true
		}
		for _, sub := range d.submissions {
			if filter.UserID != nil && sub.UserID != *filter.UserID {
				continue
			}
			if filter.TaskID != nil && sub.TaskID != *filter.TaskID {
				continue
			}
			if len(statuses) > 0 && !statuses[sub.Status] {
				continue
			}
			user := d.users[sub.UserID]
			out = append(out, domain.SubmissionView{
				Submission: sub,
				TaskTitle:  d.tasks[sub.TaskID].Title,
				UserName:   user.FullName(),
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.After(b.ReceivedAt)
		}
		return a.ID > b.ID
	})
	return paginate(out, filter.Limit, filter.Offset, 100), err
}

func paginate[T any](items []T, limit, offset, fallback int) []T {
	if limit <= 0 {
		limit = fallback
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type potentialRepo struct{ s *session }

func (r *potentialRepo) Create(_ context.Context, pm *domain.PotentialMessage) error {
	return r.s.run(func(d *dataset) error {
		if _, ok := d.users[pm.UserID]; !ok {
			return fmt.Errorf("%w: potential_messages_user_id_fkey", repository.ErrReferenced)
		}
		d.potentialSeq++
		pm.ID = d.potentialSeq
		d.potential[pm.ID] = *pm
		return nil
	})
}

func (r *potentialRepo) Get(_ context.Context, id int64) (*domain.PotentialMessage, error) {
	var out domain.PotentialMessage
	err := r.s.run(func(d *dataset) error {
		pm, ok := d.potential[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = pm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *potentialRepo) ListByStatus(_ context.Context, status domain.PotentialStatus, limit int) ([]domain.PotentialMessage, error) {
	var out []domain.PotentialMessage
	err := r.s.run(func(d *dataset) error {
		for _, pm := range d.potential {
			if pm.Status == status {
				out = append(out, pm)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, 0, 50), err
}

func (r *potentialRepo) Resolve(_ context.Context, id int64, res repository.Resolution) error {
	return r.s.run(func(d *dataset) error {
		pm, ok := d.potential[id]
		if !ok || pm.Status != domain.PotentialUnhandled {
			return repository.ErrStaleState
		}
		processedBy := res.ProcessedBy
		processedAt := res.ProcessedAt
		pm.Status = res.Status
		pm.SubmissionID = res.SubmissionID
		pm.ProcessedBy = &processedBy
		pm.ProcessedAt = &processedAt
		d.potential[id] = pm
		return nil
	})
}

func (r *potentialRepo) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.s.run(func(d *dataset) error {
		for id, pm := range d.potential {
			if pm.Status == domain.PotentialUnhandled || pm.ProcessedAt == nil || !pm.ProcessedAt.Before(cutoff) {
				continue
			}
			delete(d.potential, id)
			deleted++
			for subID, sub := range d.submissions {
				if sub.SourceMessageID != nil && *sub.SourceMessageID == id {
					sub.SourceMessageID = nil
					d.submissions[subID] = sub
				}
			}
		}
		return nil
	})
	return deleted, err
}

type dialogRepo struct{ s *session }

func (r *dialogRepo) Get(_ context.Context, userID int64) (*domain.DialogState, error) {
	var out *domain.DialogState
	err := r.s.run(func(d *dataset) error {
		state, ok := d.dialogs[userID]
		if !ok {
			return repository.ErrNotFound
		}
		out = state.Clone()
		return nil
	})
	return out, err
}

func (r *dialogRepo) Save(_ context.Context, state *domain.DialogState) error {
	return r.s.run(func(d *dataset) error {
		if _, ok := d.users[state.UserID]; !ok {
			return fmt.Errorf("%w: dialog_states_user_id_fkey", repository.ErrReferenced)
		}
		state.UpdatedAt = r.s.now()
		d.dialogs[state.UserID] = *state.Clone()
		return nil
	})
}

func (r *dialogRepo) Delete(_ context.Context, userID int64) error {
	return r.s.run(func(d *dataset) error {
		delete(d.dialogs, userID)
		return nil
	})
}

type notificationRepo struct{ s *session }

func sortNotifications(items []domain.Notification) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].NextAttemptAt.Equal(items[j].NextAttemptAt) {
			return items[i].NextAttemptAt.Before(items[j].NextAttemptAt)
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func (r *notificationRepo) Enqueue(_ context.Context, n *domain.Notification) error {
	return r.s.run(func(d *dataset) error {
		if _, dup := d.notifications[n.ID]; dup {
			return fmt.Errorf("%w: notifications_pkey", repository.ErrDuplicate)
		}
		now := r.s.now()
		if n.Status == "" {
			n.Status = domain.NotificationQueued
		}
		if n.NextAttemptAt.IsZero() {
			n.NextAttemptAt = now
		}
		n.CreatedAt = now
		d.notifications[n.ID] = *n
		return nil
	})
}

func (r *notificationRepo) Claim(_ context.Context, channel domain.Channel, now time.Time, lease time.Duration, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.s.run(func(d *dataset) error {
		var due []domain.Notification
		for _, n := range d.notifications {
			if n.Channel != channel || n.NextAttemptAt.After(now) {
				continue
			}
			if n.Status != domain.NotificationQueued && n.Status != domain.NotificationSending {
				continue
			}
			due = append(due, n)
		}
		sortNotifications(due)
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		for _, n := range due {
			n.Status = domain.NotificationSending
			n.Attempts++
			n.NextAttemptAt = now.Add(lease)
			d.notifications[n.ID] = n
			out = append(out, n)
		}
		return nil
	})
	return out, err
}

func (r *notificationRepo) update(id string, fn func(n *domain.Notification)) error {
	return r.s.run(func(d *dataset) error {
		n, ok := d.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		fn(&n)
		d.notifications[id] = n
		return nil
	})
}

func (r *notificationRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationSent
		n.SentAt = &at
		n.LastError = nil
	})
}

func (r *notificationRepo) Reschedule(_ context.Context, id string, next time.Time, lastErr string) error {
	return r.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationQueued
		n.NextAttemptAt = next
		n.LastError = &lastErr
	})
}

func (r *notificationRepo) MarkFailed(_ context.Context, id string, lastErr string) error {
	return r.update(id, func(n *domain.Notification) {
		n.Status = domain.NotificationFailed
		n.LastError = &lastErr
	})
}

func (r *notificationRepo) DeleteFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.s.run(func(d *dataset) error {
		for id, n := range d.notifications {
			finished := n.Status == domain.NotificationSent || n.Status == domain.NotificationFailed
			if finished && n.CreatedAt.Before(cutoff) {
				delete(d.notifications, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}

type supportRepo struct{ s *session }

func (r *supportRepo) Create(_ context.Context, req *domain.SupportRequest) error {
	return r.s.run(func(d *dataset) error {
		if _, ok := d.users[req.UserID]; !ok {
			return fmt.Errorf("%w: support_requests_user_id_fkey", repository.ErrReferenced)
		}
		d.supportSeq++
		req.ID = d.supportSeq
		req.CreatedAt = r.s.now()
		d.support[req.ID] = *req
		return nil
	})
}

func (r *supportRepo) Get(_ context.Context, id int64) (*domain.SupportRequest, error) {
	var out domain.SupportRequest
	err := r.s.run(func(d *dataset) error {
		req, ok := d.support[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *supportRepo) ListOpen(_ context.Context) ([]domain.SupportRequest, error) {
	var out []domain.SupportRequest
	err := r.s.run(func(d *dataset) error {
		for _, req := range d.support {
			if req.Status == domain.SupportOpen {
				out = append(out, req)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *supportRepo) Close(_ context.Context, id, adminID int64, at time.Time) error {
	return r.s.run(func(d *dataset) error {
		req, ok := d.support[id]
		if !ok || req.Status != domain.SupportOpen {
			return repository.ErrStaleState
		}
		req.Status = domain.SupportClosed
		req.ClosedBy = &adminID
		req.ClosedAt = &at
		d.support[id] = req
		return nil
	})
}

type statsRepo struct{ s *session }

func (r *statsRepo) Overview(_ context.Context) (*domain.Overview, error) {
	overview := &domain.Overview{
		UsersByMode:         map[domain.ParticipationMode]int{},
		TasksByStatus:       map[domain.TaskStatus]int{},
		SubmissionsByStatus: map[domain.SubmissionStatus]int{},
		PotentialByStatus:   map[domain.PotentialStatus]int{},
	}
	err := r.s.run(func(d *dataset) error {
		for _, u := range d.users {
			overview.UsersTotal++
			if u.RegistrationCompleted {
				overview.UsersRegistered++
				overview.UsersByMode[u.Mode]++
			}
		}
		for _, t := range d.tasks {
			overview.TasksByStatus[t.Status]++
		}
		for _, sub := range d.submissions {
			overview.SubmissionsByStatus[sub.Status]++
			if sub.OnTime {
				overview.SubmissionsOnTime++
			} else {
				overview.SubmissionsLate++
			}
		}
		for _, pm := range d.potential {
			overview.PotentialByStatus[pm.Status]++
		}
		for _, req := range d.support {
			if req.Status == domain.SupportOpen {
				overview.SupportOpen++
			}
		}
		return nil
	})
	return overview, err
}

func (r *statsRepo) TaskStats(_ context.Context, taskID int64) (*domain.TaskStats, error) {
	stats := &domain.TaskStats{}
	err := r.s.run(func(d *dataset) error {
		users := map[int64]struct{}{}
		for _, sub := range d.submissions {
			if sub.TaskID != taskID {
				continue
			}
			stats.Total++
			switch sub.Status {
			case domain.SubmissionPending:
				stats.Pending++
			case domain.SubmissionApproved:
				stats.Approved++
			case domain.SubmissionRejected:
				stats.Rejected++
			}
			if sub.OnTime {
				stats.OnTime++
			}
			users[sub.UserID] = struct{}{}
		}
		stats.UniqueUsers = len(users)
		return nil
	})
	return stats, err
}

func (r *statsRepo) Progress(_ context.Context, userID int64, now time.Time) (*domain.Progress, error) {
	progress := &domain.Progress{}
	err := r.s.run(func(d *dataset) error {
		completed := map[int64]struct{}{}
		for _, sub := range d.submissions {
			if sub.UserID == userID && sub.OnTime && sub.Status != domain.SubmissionRejected {
				completed[sub.TaskID] = struct{}{}
			}
		}
		progress.CompletedOnTime = len(completed)
		for _, t := range d.tasks {
			if t.AcceptsReports(now) {
				progress.OpenTasks++
			}
		}
		return nil
	})
	return progress, err
}

func (r *statsRepo) PotentialSummary(_ context.Context) (*domain.PotentialSummary, error) {
	summary := &domain.PotentialSummary{ByLabel: map[string]int{}}
	err := r.s.run(func(d *dataset) error {
		for _, pm := range d.potential {
			if pm.Status != domain.PotentialUnhandled {
				continue
			}
			summary.ByLabel[pm.Payload.Label()]++
			summary.Total++
		}
		return nil
	})
	return summary, err
}
