package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danilaloko/eco-bot/internal/deadline"
	"github.com/danilaloko/eco-bot/internal/domain"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

func TestTaskCreate_OpeningDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		opens string
	}{
		{name: "in the past", opens: "01.03.2025 09:00"},
		{name: "after the deadline", opens: "02.01.2099"},
		{name: "at the deadline", opens: "01.01.2099 12:00"},
		{name: "garbage", opens: "soon"},
	}
	for _, tc := range cases {
		_, err := f.tasks.Create(ctx, testAdmin, TaskInput{Title: "Task " + tc.name, Week: 10, Deadline: "01.01.2099 12:00", OpensAt: tc.opens})
		if !errors.Is(err, apperrors.ErrInvalidOpeningDate) {
			t.Fatalf("%s: expected invalid opening date, got %v", tc.name, err)
		}
	}

	task, err := f.tasks.Create(ctx, testAdmin, TaskInput{Title: "Scheduled", Week: 11, Deadline: "01.01.2099 12:00", OpensAt: "10.03.2025"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	if task.OpensAt == nil || !task.OpensAt.Equal(want) {
		t.Fatalf("opens at %v, want %v", task.OpensAt, want)
	}

	immediate, err := f.tasks.Create(ctx, testAdmin, TaskInput{Title: "Immediate", Week: 11, Deadline: "01.01.2099 12:00", OpensAt: "now"})
	if err != nil || immediate.OpensAt != nil {
		t.Fatalf("now must publish at once: %+v %v", immediate, err)
	}
}

func TestScheduledTask_HiddenUntilOpening(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)

	task, err := f.tasks.Create(ctx, testAdmin, TaskInput{Title: "Spring cleanup", Week: 11, Deadline: "01.01.2099 12:00", OpensAt: "10.03.2025 09:00"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	items, err := f.tasks.ListOpenForUser(ctx, 1)
	if err != nil || len(items) != 0 {
		t.Fatalf("scheduled task must be hidden: %+v %v", items, err)
	}
	if _, err := f.submissions.BeginReport(ctx, 1, task.ID); !errors.Is(err, apperrors.ErrTaskNotPublished) {
		t.Fatalf("BeginReport: expected not published, got %v", err)
	}
	if _, err := f.submissions.Submit(ctx, 1, task.ID, domain.NewTextPayload("early")); !errors.Is(err, apperrors.ErrTaskNotPublished) {
		t.Fatalf("Submit: expected not published, got %v", err)
	}
	progress, err := f.submissions.Progress(ctx, 1)
	if err != nil || progress.OpenTasks != 0 {
		t.Fatalf("unpublished task must not count: %+v %v", progress, err)
	}

	later := func() time.Time { return testNow.Add(7 * 24 * time.Hour) }
	tasks := NewTaskService(TaskDependencies{Store: f.store, Clock: later, Deadlines: deadline.New(time.UTC)})
	submissions := NewSubmissionService(SubmissionDependencies{Store: f.store, Clock: later, Location: time.UTC})
	items, err = tasks.ListOpenForUser(ctx, 1)
	if err != nil || len(items) != 1 || items[0].Task.ID != task.ID {
		t.Fatalf("task must be visible after opening: %+v %v", items, err)
	}
	if _, err := submissions.Submit(ctx, 1, task.ID, domain.NewTextPayload("on the day")); err != nil {
		t.Fatalf("Submit after opening: %v", err)
	}
}

func TestTaskEdit_OpeningDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, "Walk to work", "01.04.2025 12:00")

	late := "02.04.2025 09:00"
	if _, err := f.tasks.Edit(ctx, testAdmin, task.ID, TaskPatch{OpensAt: &late}); !errors.Is(err, apperrors.ErrInvalidOpeningDate) {
		t.Fatalf("expected invalid opening date, got %v", err)
	}
	opens := "20.03.2025"
	edited, err := f.tasks.Edit(ctx, testAdmin, task.ID, TaskPatch{OpensAt: &opens})
	if err != nil || edited.OpensAt == nil {
		t.Fatalf("Edit opens: %+v %v", edited, err)
	}

	// Moving the deadline before the opening is refused too.
	due := "15.03.2025 12:00"
	if _, err := f.tasks.Edit(ctx, testAdmin, task.ID, TaskPatch{Deadline: &due}); !errors.Is(err, apperrors.ErrInvalidOpeningDate) {
		t.Fatalf("expected invalid opening date for early deadline, got %v", err)
	}

	now := "now"
	edited, err = f.tasks.Edit(ctx, testAdmin, task.ID, TaskPatch{OpensAt: &now})
	if err != nil || edited.OpensAt != nil {
		t.Fatalf("now must clear the schedule: %+v %v", edited, err)
	}
}

func TestListArchivedForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)
	done := f.task(t, "Switch off standby", "01.01.2099 12:00")
	missed := f.task(t, "Repair instead of buying", "01.01.2099 12:00")
	f.task(t, "Still running", "01.01.2099 12:00")

	if _, err := f.submissions.Submit(ctx, 1, done.ID, domain.NewTextPayload("switched")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for _, id := range []int64{done.ID, missed.ID} {
		if _, err := f.tasks.SetStatus(ctx, testAdmin, id, domain.TaskStatusArchived); err != nil {
			t.Fatalf("archive %d: %v", id, err)
		}
	}

	items, err := f.tasks.ListArchivedForUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListArchivedForUser: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two archived tasks, got %d", len(items))
	}
	for _, item := range items {
		switch item.Task.ID {
		case done.ID:
			if item.SubmissionStatus == nil || *item.SubmissionStatus != domain.SubmissionPending {
				t.Fatalf("done task status %v", item.SubmissionStatus)
			}
		case missed.ID:
			if item.SubmissionStatus != nil {
				t.Fatalf("missed task must have no report")
			}
		default:
			t.Fatalf("open task %d listed as archived", item.Task.ID)
		}
	}
}

func TestHistory_ReadsEveryPage(t *testing.T) {
	saved := historyPageSize
	historyPageSize = 2
	defer func() { historyPageSize = saved }()

	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)
	titles := []string{"Page one", "Page two", "Page three", "Page four", "Page five"}
	for _, title := range titles {
		task := f.task(t, title, "01.01.2099 12:00")
		if _, err := f.submissions.Submit(ctx, 1, task.ID, domain.NewTextPayload(title)); err != nil {
			t.Fatalf("Submit %q: %v", title, err)
		}
	}

	subs, err := f.submissions.ListForUser(ctx, 1)
	if err != nil || len(subs) != len(titles) {
		t.Fatalf("ListForUser returned %d of %d: %v", len(subs), len(titles), err)
	}
	items, err := f.tasks.ListOpenForUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListOpenForUser: %v", err)
	}
	for _, item := range items {
		if item.SubmissionStatus == nil {
			t.Fatalf("task %q lost its report status", item.Task.Title)
		}
	}
	history, err := f.analytics.UserHistory(ctx, 1)
	if err != nil {
		t.Fatalf("UserHistory: %v", err)
	}
	if len(history.Submissions) != len(titles) {
		t.Fatalf("history has %d submissions", len(history.Submissions))
	}
}
