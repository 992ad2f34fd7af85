package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danilaloko/eco-bot/internal/config"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/notify"
	"github.com/danilaloko/eco-bot/internal/repository"
	"github.com/danilaloko/eco-bot/internal/repository/memstore"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
	// fail maps a chat id to the error returned for it.
	fail map[int64]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: map[int64][]string{}, fail: map[int64]error{}}
}

func (f *fakeNotifier) Notify(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[chatID]; err != nil {
		return err
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

var epoch = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

func enqueue(t *testing.T, store *memstore.Store, channel domain.Channel, recipient int64, text string) string {
	t.Helper()
	n := &domain.Notification{
		ID:            fmt.Sprintf("%s-%d-%s", channel, recipient, text),
		Channel:       channel,
		RecipientID:   recipient,
		Kind:          domain.NotifySubmissionReceived,
		Text:          text,
		NextAttemptAt: store.Now(),
	}
	if err := store.Repos().Notifications.Enqueue(context.Background(), n); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return n.ID
}

func findNotification(t *testing.T, store *memstore.Store, id string) domain.Notification {
	t.Helper()
	for _, n := range store.Notifications() {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("notification %s not found", id)
	return domain.Notification{}
}

func newWorker(store *memstore.Store, notifier notify.Notifier, clock *manualClock) *NotificationWorker {
	return NewNotificationWorker(NotificationWorkerDependencies{
		Store:    store,
		Notifier: notifier,
		Channel:  domain.ChannelParticipant,
		Config: config.NotificationConfig{
			BatchSize:    10,
			MaxAttempts:  2,
			RetryBackoff: time.Minute,
		},
		Clock: clock.Now,
		Lease: time.Minute,
	})
}

func TestNotificationWorker_DeliversOnlyOwnChannel(t *testing.T) {
	clock := &manualClock{now: epoch}
	store := memstore.New()
	store.Now = clock.Now

	first := enqueue(t, store, domain.ChannelParticipant, 1, "hello")
	admin := enqueue(t, store, domain.ChannelAdmin, 99, "admin")

	notifier := newFakeNotifier()
	delivered, err := newWorker(store, notifier, clock).DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("DrainOnce: %v", err)
	}
	if delivered != 1 || len(notifier.sent[1]) != 1 {
		t.Fatalf("expected one delivery, got %d %v", delivered, notifier.sent)
	}
	if got := findNotification(t, store, first); got.Status != domain.NotificationSent || got.SentAt == nil {
		t.Fatalf("expected sent row, got %+v", got)
	}
	if got := findNotification(t, store, admin); got.Status != domain.NotificationQueued {
		t.Fatalf("admin row must stay queued, got %s", got.Status)
	}
}

func TestNotificationWorker_RetriesThenFails(t *testing.T) {
	clock := &manualClock{now: epoch}
	store := memstore.New()
	store.Now = clock.Now
	id := enqueue(t, store, domain.ChannelParticipant, 5, "retry me")

	notifier := newFakeNotifier()
	notifier.fail[5] = errors.New("timeout")
	w := newWorker(store, notifier, clock)

	if _, err := w.DrainOnce(context.Background()); err != nil {
		t.Fatalf("first drain: %v", err)
	}
	got := findNotification(t, store, id)
	if got.Status != domain.NotificationQueued || got.Attempts != 1 {
		t.Fatalf("expected rescheduled row, got %+v", got)
	}
	if !got.NextAttemptAt.Equal(epoch.Add(time.Minute)) {
		t.Fatalf("unexpected backoff: %v", got.NextAttemptAt)
	}

	// Not yet due.
	if n, _ := w.DrainOnce(context.Background()); n != 0 {
		t.Fatalf("row delivered before its backoff elapsed")
	}
	if got := findNotification(t, store, id); got.Attempts != 1 {
		t.Fatalf("row claimed before due: %+v", got)
	}

	clock.now = epoch.Add(2 * time.Minute)
	if _, err := w.DrainOnce(context.Background()); err != nil {
		t.Fatalf("second drain: %v", err)
	}
	got = findNotification(t, store, id)
	if got.Status != domain.NotificationFailed || got.Attempts != 2 || got.LastError == nil {
		t.Fatalf("expected failed row, got %+v", got)
	}
}

func TestNotificationWorker_UndeliverableFailsImmediately(t *testing.T) {
	clock := &manualClock{now: epoch}
	store := memstore.New()
	store.Now = clock.Now
	id := enqueue(t, store, domain.ChannelParticipant, 7, "blocked")

	notifier := newFakeNotifier()
	notifier.fail[7] = fmt.Errorf("%w: bot was blocked", notify.ErrUndeliverable)
	if _, err := newWorker(store, notifier, clock).DrainOnce(context.Background()); err != nil {
		t.Fatalf("DrainOnce: %v", err)
	}
	if got := findNotification(t, store, id); got.Status != domain.NotificationFailed || got.Attempts != 1 {
		t.Fatalf("expected immediate failure, got %+v", got)
	}
}

func TestNotificationWorker_ReclaimsExpiredLease(t *testing.T) {
	clock := &manualClock{now: epoch}
	store := memstore.New()
	store.Now = clock.Now
	id := enqueue(t, store, domain.ChannelParticipant, 3, "crash")

	// A worker claimed the row and died before reporting.
	if _, err := store.Repos().Notifications.Claim(context.Background(), domain.ChannelParticipant, epoch, time.Minute, 10); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	notifier := newFakeNotifier()
	w := newWorker(store, notifier, clock)
	if n, _ := w.DrainOnce(context.Background()); n != 0 {
		t.Fatalf("leased row must not be delivered twice")
	}
	clock.now = epoch.Add(2 * time.Minute)
	if n, err := w.DrainOnce(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected redelivery after lease, got %d %v", n, err)
	}
	if got := findNotification(t, store, id); got.Status != domain.NotificationSent {
		t.Fatalf("expected sent, got %s", got.Status)
	}
}

func TestNotificationWorker_RunWakesOnSignal(t *testing.T) {
	store := memstore.New()
	signal := notify.NewLocalSignal()
	notifier := newFakeNotifier()
	w := NewNotificationWorker(NotificationWorkerDependencies{
		Store:    store,
		Notifier: notifier,
		Signal:   signal,
		Channel:  domain.ChannelParticipant,
		Config:   config.NotificationConfig{PollInterval: time.Hour},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	enqueue(t, store, domain.ChannelParticipant, 11, "wake")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = signal.Raise(ctx, domain.ChannelParticipant)
		notifier.mu.Lock()
		got := len(notifier.sent[11])
		notifier.mu.Unlock()
		if got == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("worker did not deliver after signal")
}

func TestRetentionWorker_Sweep(t *testing.T) {
	clock := &manualClock{now: epoch}
	store := memstore.New()
	store.Now = clock.Now
	ctx := context.Background()
	repos := store.Repos()

	if _, _, err := repos.Users.Touch(ctx, domain.Identity{ID: 1}); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	old := &domain.PotentialMessage{UserID: 1, Payload: domain.NewTextPayload("old"), ReceivedAt: epoch, Status: domain.PotentialUnhandled}
	fresh := &domain.PotentialMessage{UserID: 1, Payload: domain.NewTextPayload("fresh"), ReceivedAt: epoch, Status: domain.PotentialUnhandled}
	pending := &domain.PotentialMessage{UserID: 1, Payload: domain.NewTextPayload("pending"), ReceivedAt: epoch, Status: domain.PotentialUnhandled}
	for _, pm := range []*domain.PotentialMessage{old, fresh, pending} {
		if err := repos.Potential.Create(ctx, pm); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	resolve := func(id int64, at time.Time) {
		err := repos.Potential.Resolve(ctx, id, repository.Resolution{Status: domain.PotentialDismissed, ProcessedBy: 9, ProcessedAt: at})
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	resolve(old.ID, epoch)
	resolve(fresh.ID, epoch.Add(48*time.Hour))

	sent := enqueue(t, store, domain.ChannelParticipant, 1, "done")
	queued := enqueue(t, store, domain.ChannelParticipant, 1, "waiting")
	if err := repos.Notifications.MarkSent(ctx, sent, epoch); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	clock.now = epoch.Add(72 * time.Hour)
	w := NewRetentionWorker(store, config.RetentionConfig{
		PotentialMessageAge: 48 * time.Hour,
		NotificationAge:     24 * time.Hour,
	}, nil, clock.Now)

	result, err := w.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.PotentialMessages != 1 || result.Notifications != 1 {
		t.Fatalf("unexpected sweep result %+v", result)
	}
	if _, err := repos.Potential.Get(ctx, old.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("old message must be gone, got %v", err)
	}
	for _, id := range []int64{fresh.ID, pending.ID} {
		if _, err := repos.Potential.Get(ctx, id); err != nil {
			t.Fatalf("message %d must survive: %v", id, err)
		}
	}
	if got := findNotification(t, store, queued); got.Status != domain.NotificationQueued {
		t.Fatalf("queued row must survive")
	}
}
