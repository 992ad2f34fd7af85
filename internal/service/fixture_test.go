package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danilaloko/eco-bot/internal/auth"
	"github.com/danilaloko/eco-bot/internal/deadline"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/repository/memstore"
)

const testAdmin = 900

// 2025-03-05 is a Wednesday of ISO week 10.
var testNow = time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store        *memstore.Store
	dispatcher   events.Dispatcher
	recorder     *recorder
	registration *RegistrationService
	tasks        *TaskService
	submissions  *SubmissionService
	moderation   *ModerationService
	potential    *PotentialMessageService
	support      *SupportService
	analytics    *AnalyticsService
	router       *InboundRouter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	for _, eventType := range events.AllTypes {
		dispatcher.Subscribe(eventType, rec.handle)
	}
	admins := auth.NewAdminAllowList([]int64{testAdmin})
	clock := func() time.Time { return testNow }

	f := &fixture{store: store, dispatcher: dispatcher, recorder: rec}
	f.registration = NewRegistrationService(RegistrationDependencies{Store: store, Dispatcher: dispatcher, Clock: clock, Admins: admins})
	f.tasks = NewTaskService(TaskDependencies{Store: store, Dispatcher: dispatcher, Clock: clock, Deadlines: deadline.New(time.UTC)})
	f.submissions = NewSubmissionService(SubmissionDependencies{Store: store, Dispatcher: dispatcher, Clock: clock, Admins: admins, Location: time.UTC})
	f.moderation = NewModerationService(ModerationDependencies{Store: store, Dispatcher: dispatcher, Clock: clock, Submissions: f.submissions})
	f.potential = NewPotentialMessageService(PotentialMessageDependencies{Store: store, Dispatcher: dispatcher, Clock: clock, Admins: admins})
	f.support = NewSupportService(SupportDependencies{Store: store, Dispatcher: dispatcher, Clock: clock, Admins: admins})
	f.analytics = NewAnalyticsService(store, clock)
	f.router = NewInboundRouter(InboundRouterDependencies{
		Registration: f.registration,
		Submissions:  f.submissions,
		Support:      f.support,
		Potential:    f.potential,
	})
	return f
}

// register completes an individual registration for userID.
func (f *fixture) register(t *testing.T, userID int64) *domain.User {
	t.Helper()
	ctx := context.Background()
	if _, err := f.registration.Touch(ctx, domain.Identity{ID: userID, Username: "u"}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if _, err := f.registration.Start(ctx, userID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var progress *RegistrationProgress
	for _, answer := range []string{"Sidorova", "Maria", "individual"} {
		var err error
		if progress, err = f.registration.Advance(ctx, userID, answer); err != nil {
			t.Fatalf("Advance %q: %v", answer, err)
		}
	}
	if progress.User == nil || !progress.User.RegistrationCompleted {
		t.Fatalf("registration not completed: %+v", progress)
	}
	return progress.User
}

func (f *fixture) task(t *testing.T, title, due string) *domain.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), testAdmin, TaskInput{Title: title, Week: 10, Deadline: due})
	if err != nil {
		t.Fatalf("Create %q: %v", title, err)
	}
	return task
}

// outbox returns every queued row of a channel.
func (f *fixture) outbox(t *testing.T, channel domain.Channel) []domain.Notification {
	t.Helper()
	rows, err := f.store.Repos().Notifications.Claim(context.Background(), channel, testNow.Add(24*time.Hour), time.Minute, 1000)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	return rows
}

func countKind(rows []domain.Notification, kind domain.NotificationKind) int {
	n := 0
	for _, row := range rows {
		if row.Kind == kind {
			n++
		}
	}
	return n
}
