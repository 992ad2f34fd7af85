package service

import (
	"context"
	"errors"
	"testing"

	"github.com/danilaloko/eco-bot/internal/domain"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

func inbound(userID int64, payload domain.Payload) Inbound {
	return Inbound{Sender: domain.Identity{ID: userID, Username: "r"}, Payload: payload, ReceivedAt: testNow}
}

func TestRoute_UnregisteredSenderStartsRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.router.Route(ctx, inbound(7, domain.NewTextPayload("hi there")))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if out.Kind != RouteRegistration || out.Registration.Step != domain.StepAwaitSurname {
		t.Fatalf("unexpected outcome %+v", out)
	}

	out, err = f.router.Route(ctx, inbound(7, domain.NewMediaPayload(domain.MediaPhoto, "p", "")))
	if err == nil || out.Kind != RouteRegistration || out.Registration.Step != domain.StepAwaitSurname {
		t.Fatalf("media during registration must be refused with the current step: %+v %v", out, err)
	}

	out, err = f.router.Route(ctx, inbound(7, domain.NewTextPayload("Kuznetsov")))
	if err != nil || out.Registration.Step != domain.StepAwaitGivenName {
		t.Fatalf("surname answer: %+v %v", out, err)
	}
	pms, err := f.potential.ListUnhandled(ctx, 10)
	if err != nil || len(pms) != 0 {
		t.Fatalf("nothing may be captured during registration: %v %v", pms, err)
	}
}

func TestRoute_RegisteredWithoutDialogIsCaptured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 8)

	payload := domain.NewDocumentPayload("doc-1", "report.pdf", "application/pdf", "")
	out, err := f.router.Route(ctx, inbound(8, payload))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if out.Kind != RouteCaptured || out.Potential == nil || out.Potential.Payload.FileID() != "doc-1" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !out.Potential.ReceivedAt.Equal(testNow) || out.Potential.Status != domain.PotentialUnhandled {
		t.Fatalf("captured message %+v", out.Potential)
	}
}

func TestRoute_ReportDialog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 9)
	task := f.task(t, "Go meat free for a day", "01.01.2099 12:00")
	if _, err := f.submissions.BeginReport(ctx, 9, task.ID); err != nil {
		t.Fatalf("BeginReport: %v", err)
	}

	out, err := f.router.Route(ctx, inbound(9, domain.NewMediaPayload(domain.MediaVideo, "v-1", "lunch")))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if out.Kind != RouteSubmission || out.Submission.Task.ID != task.ID {
		t.Fatalf("unexpected outcome %+v", out)
	}

	out, err = f.router.Route(ctx, inbound(9, domain.NewTextPayload("thanks")))
	if err != nil || out.Kind != RouteCaptured {
		t.Fatalf("after submit the dialog is over: %+v %v", out, err)
	}
}

func TestRoute_ReportDialogForArchivedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 11)
	task := f.task(t, "Cycle to school", "01.01.2099 12:00")
	if _, err := f.submissions.BeginReport(ctx, 11, task.ID); err != nil {
		t.Fatalf("BeginReport: %v", err)
	}
	if _, err := f.tasks.SetStatus(ctx, testAdmin, task.ID, domain.TaskStatusArchived); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if _, err := f.router.Route(ctx, inbound(11, domain.NewTextPayload("rode today"))); !errors.Is(err, apperrors.ErrTaskNotOpen) {
		t.Fatalf("expected task not open, got %v", err)
	}
	out, err := f.router.Route(ctx, inbound(11, domain.NewTextPayload("rode today")))
	if err != nil || out.Kind != RouteCaptured {
		t.Fatalf("refused report must end the dialog: %+v %v", out, err)
	}
}

func TestRoute_StartLeavesReportDialog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 12)
	task := f.task(t, "Take a shorter shower", "01.01.2099 12:00")
	if _, err := f.submissions.BeginReport(ctx, 12, task.ID); err != nil {
		t.Fatalf("BeginReport: %v", err)
	}
	if _, err := f.tasks.SetStatus(ctx, testAdmin, task.ID, domain.TaskStatusArchived); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	progress, err := f.registration.Start(ctx, 12)
	if err != nil || !progress.AlreadyRegistered {
		t.Fatalf("Start: %+v %v", progress, err)
	}
	out, err := f.router.Route(ctx, inbound(12, domain.NewTextPayload("hello")))
	if err != nil || out.Kind != RouteCaptured {
		t.Fatalf("after /start the message must be captured: %+v %v", out, err)
	}
}

func TestRoute_SupportAndClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 10)

	if err := f.support.Begin(ctx, 10); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := f.router.Route(ctx, inbound(10, domain.NewMediaPayload(domain.MediaPhoto, "p", ""))); err == nil {
		t.Fatalf("support request must be text")
	}
	out, err := f.router.Route(ctx, inbound(10, domain.NewTextPayload("  How do I send a video? ")))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if out.Kind != RouteSupport || out.Support.Message != "How do I send a video?" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if got := countKind(f.outbox(t, domain.ChannelAdmin), domain.NotifyAdminSupport); got != 1 {
		t.Fatalf("admin support alerts: %d", got)
	}

	open, err := f.support.ListOpen(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("ListOpen: %v %v", open, err)
	}
	closed, err := f.support.Close(ctx, testAdmin, open[0].ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != domain.SupportClosed || *closed.ClosedBy != testAdmin {
		t.Fatalf("closed request %+v", closed)
	}
	if _, err := f.support.Close(ctx, testAdmin, open[0].ID); !errors.Is(err, apperrors.ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
	if got := countKind(f.outbox(t, domain.ChannelParticipant), domain.NotifySupportClosed); got != 1 {
		t.Fatalf("participant support notices: %d", got)
	}
}

func TestRoute_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, 11)
	if err := f.support.Begin(ctx, 11); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := f.router.Cancel(ctx, 11); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	out, err := f.router.Route(ctx, inbound(11, domain.NewTextPayload("hello")))
	if err != nil || out.Kind != RouteCaptured {
		t.Fatalf("after cancel messages are captured: %+v %v", out, err)
	}
}
