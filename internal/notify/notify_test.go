package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/danilaloko/eco-bot/internal/domain"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func TestTelegramNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender)
	if err := n.Notify(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].ChatID != 42 || sender.sent[0].Text != "hello" {
		t.Fatalf("unexpected messages: %+v", sender.sent)
	}
}

func TestTelegramNotifier_ClassifiesErrors(t *testing.T) {
	blocked := &fakeSender{err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	err := NewTelegramNotifier(blocked).Notify(context.Background(), 1, "x")
	if !errors.Is(err, ErrUndeliverable) {
		t.Fatalf("expected ErrUndeliverable, got %v", err)
	}

	flaky := &fakeSender{err: errors.New("connection reset")}
	err = NewTelegramNotifier(flaky).Notify(context.Background(), 1, "x")
	if err == nil || errors.Is(err, ErrUndeliverable) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestLocalSignal_WakesOnlyMatchingChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signal := NewLocalSignal()
	participant := signal.Subscribe(ctx, domain.ChannelParticipant)
	admin := signal.Subscribe(ctx, domain.ChannelAdmin)

	if err := signal.Raise(ctx, domain.ChannelParticipant); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	// A second raise must not block on the full buffer.
	_ = signal.Raise(ctx, domain.ChannelParticipant)

	select {
	case <-participant:
	case <-time.After(time.Second):
		t.Fatalf("participant subscriber not woken")
	}
	select {
	case <-admin:
		t.Fatalf("admin subscriber must not be woken")
	default:
	}
}

func TestNopSignal(t *testing.T) {
	var s Signal = NopSignal{}
	if err := s.Raise(context.Background(), domain.ChannelAdmin); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	if s.Subscribe(context.Background(), domain.ChannelAdmin) != nil {
		t.Fatalf("expected nil channel")
	}
}
