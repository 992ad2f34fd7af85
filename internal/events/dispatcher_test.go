package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatcher_RunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	calls := 0
	boom := errors.New("boom")

	d.Subscribe(EventTaskCreated, func(context.Context, Event) error {
		calls++
		return boom
	})
	d.Subscribe(EventTaskCreated, func(context.Context, Event) error {
		calls++
		return nil
	})
	d.Subscribe(EventTaskDeleted, func(context.Context, Event) error {
		t.Fatalf("handler for another type must not run")
		return nil
	})

	err := d.Publish(context.Background(), New(EventTaskCreated, 1, time.Now(), TaskPayload{TaskID: 3}))
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined handler error, got %v", err)
	}
}

func TestNew_AssignsID(t *testing.T) {
	a := New(EventSupportOpened, 1, time.Now(), nil)
	b := New(EventSupportOpened, 1, time.Now(), nil)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q %q", a.ID, b.ID)
	}
}
