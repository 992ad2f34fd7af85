package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

func TestDecide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)
	task := f.task(t, "Use a reusable cup", "01.01.2099 12:00")
	res, err := f.submissions.Submit(ctx, 1, task.ID, domain.NewTextPayload("cup"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := f.moderation.Decide(ctx, testAdmin, res.Submission.ID, domain.SubmissionPending, ""); !errors.Is(err, apperrors.ErrInvalidOutcome) {
		t.Fatalf("expected invalid outcome, got %v", err)
	}
	sub, err := f.moderation.Decide(ctx, testAdmin, res.Submission.ID, domain.SubmissionRejected, "  blurry photo ")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if sub.Status != domain.SubmissionRejected || sub.RejectionNote == nil || *sub.RejectionNote != "blurry photo" {
		t.Fatalf("decided submission %+v", sub)
	}
	if sub.DecidedAt == nil || !sub.DecidedAt.Equal(testNow) || *sub.DecidedBy != testAdmin {
		t.Fatalf("decision metadata %+v", sub)
	}
	if _, err := f.moderation.Decide(ctx, testAdmin, res.Submission.ID, domain.SubmissionApproved, ""); !errors.Is(err, apperrors.ErrAlreadyDecided) {
		t.Fatalf("expected already decided, got %v", err)
	}
	if _, err := f.moderation.Decide(ctx, testAdmin, 404, domain.SubmissionApproved, ""); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	rows := f.outbox(t, domain.ChannelParticipant)
	if countKind(rows, domain.NotifySubmissionDecided) != 1 {
		t.Fatalf("expected one decision notice, got %+v", rows)
	}
	if !containsType(f.recorder.types(), events.EventSubmissionDecided) {
		t.Fatalf("missing decision event")
	}
}

func TestBind_PreservesReceivedAtAndApproves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)
	task := f.task(t, "Recycle glass jars", "04.03.2025 20:00")

	// Sent before the deadline, bound after it.
	sentAt := time.Date(2025, time.March, 4, 18, 0, 0, 0, time.UTC)
	pm, err := f.potential.Capture(ctx, 1, domain.NewTextPayload("recycled glass jars"), sentAt)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if got := countKind(f.outbox(t, domain.ChannelAdmin), domain.NotifyAdminNewPotential); got != 1 {
		t.Fatalf("admin potential alerts: %d", got)
	}

	res, err := f.moderation.Bind(ctx, testAdmin, pm.ID, task.ID)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	sub := res.Submission
	if sub.Status != domain.SubmissionApproved || !sub.ReceivedAt.Equal(sentAt) || !sub.OnTime {
		t.Fatalf("bound submission %+v", sub)
	}
	if sub.SourceMessageID == nil || *sub.SourceMessageID != pm.ID || *sub.DecidedBy != testAdmin {
		t.Fatalf("binding metadata %+v", sub)
	}

	stored, err := f.potential.Get(ctx, pm.ID)
	if err != nil || stored.Status != domain.PotentialBound || *stored.SubmissionID != sub.ID {
		t.Fatalf("potential after bind: %+v %v", stored, err)
	}
	if _, err := f.moderation.Bind(ctx, testAdmin, pm.ID, task.ID); !errors.Is(err, apperrors.ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
	if err := f.moderation.Dismiss(ctx, testAdmin, pm.ID); !errors.Is(err, apperrors.ErrAlreadyProcessed) {
		t.Fatalf("expected already processed on dismiss, got %v", err)
	}

	participant := f.outbox(t, domain.ChannelParticipant)
	if countKind(participant, domain.NotifyPotentialBound) != 1 || countKind(participant, domain.NotifySubmissionReceived) != 0 {
		t.Fatalf("participant notices after bind: %+v", participant)
	}
}

func TestBind_FailureLeavesMessageUnhandled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)
	task := f.task(t, "Collect litter", "01.01.2099 12:00")
	if _, err := f.submissions.Submit(ctx, 1, task.ID, domain.NewTextPayload("first")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	pm, err := f.potential.Capture(ctx, 1, domain.NewTextPayload("again"), testNow)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if _, err := f.moderation.Bind(ctx, testAdmin, pm.ID, task.ID); !errors.Is(err, apperrors.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	stored, err := f.potential.Get(ctx, pm.ID)
	if err != nil || stored.Status != domain.PotentialUnhandled {
		t.Fatalf("message must stay unhandled: %+v %v", stored, err)
	}

	if err := f.moderation.Dismiss(ctx, testAdmin, pm.ID); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	left, err := f.potential.ListUnhandled(ctx, 10)
	if err != nil || len(left) != 0 {
		t.Fatalf("unhandled after dismiss: %v %v", left, err)
	}
}

func TestSuggestTasks_PrefersWeekThenWords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)

	other, err := f.tasks.Create(ctx, testAdmin, TaskInput{Title: "Plant a tree today", Week: 12, Deadline: "01.01.2099 12:00"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sameWeek := f.task(t, "Use public transport", "01.01.2099 12:00")
	wordy := f.task(t, "Plant some flowers", "01.01.2099 12:00")

	pm, err := f.potential.Capture(ctx, 1, domain.NewTextPayload("we plant flowers and a tree"), testNow)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	got, err := f.moderation.SuggestTasks(ctx, pm.ID, 3)
	if err != nil {
		t.Fatalf("SuggestTasks: %v", err)
	}
	want := []int64{wordy.ID, sameWeek.ID, other.ID}
	if len(got) != len(want) {
		t.Fatalf("got %d suggestions", len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: got task %d, want %d", i, got[i].ID, want[i])
		}
	}
}

func TestDeleteTask_InUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 1)
	used := f.task(t, "Refuse plastic bags", "01.01.2099 12:00")
	unused := f.task(t, "Fix a leaking tap", "01.01.2099 12:00")
	if _, err := f.submissions.Submit(ctx, 1, used.ID, domain.NewTextPayload("bag")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := f.tasks.Delete(ctx, testAdmin, used.ID); !errors.Is(err, apperrors.ErrTaskInUse) {
		t.Fatalf("expected task in use, got %v", err)
	}
	if err := f.tasks.Delete(ctx, testAdmin, unused.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.tasks.Get(ctx, unused.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected deleted task to be gone, got %v", err)
	}
}

func TestTaskEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, "Compost food waste", "01.01.2099 12:00")
	f.task(t, "Bring your own bag", "01.01.2099 12:00")

	dup := "Bring your own bag"
	if _, err := f.tasks.Edit(ctx, testAdmin, task.ID, TaskPatch{Title: &dup}); !errors.Is(err, apperrors.ErrDuplicateTitle) {
		t.Fatalf("expected duplicate title, got %v", err)
	}
	week := 11
	edited, err := f.tasks.Edit(ctx, testAdmin, task.ID, TaskPatch{Week: &week})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Week != 11 || !edited.Deadline.Equal(task.Deadline) {
		t.Fatalf("week edit must keep the deadline: %+v", edited)
	}
	due := "auto"
	edited, err = f.tasks.Edit(ctx, testAdmin, task.ID, TaskPatch{Deadline: &due})
	if err != nil {
		t.Fatalf("Edit deadline: %v", err)
	}
	if edited.Deadline.Equal(task.Deadline) {
		t.Fatalf("auto deadline should be recomputed for week 11")
	}
}

func TestRankTasks_UsesChallengeTimezone(t *testing.T) {
	// Sunday 22:00 UTC of ISO week 10 is already Monday of week 11 in UTC+3.
	received := time.Date(2025, time.March, 9, 22, 0, 0, 0, time.UTC)
	pm := &domain.PotentialMessage{Payload: domain.NewTextPayload("done"), ReceivedAt: received}
	tasks := []domain.Task{
		{ID: 1, Title: "Week ten", Week: 10, Deadline: received.Add(time.Hour)},
		{ID: 2, Title: "Week eleven", Week: 11, Deadline: received.Add(48 * time.Hour)},
	}

	if got := rankTasks(pm, tasks, 1, time.UTC); got[0].ID != 1 {
		t.Fatalf("UTC ranking picked task %d", got[0].ID)
	}
	if got := rankTasks(pm, tasks, 1, time.FixedZone("MSK", 3*60*60)); got[0].ID != 2 {
		t.Fatalf("UTC+3 ranking picked task %d", got[0].ID)
	}
}
