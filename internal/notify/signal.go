package notify

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
)

// Signal wakes delivery workers when outbox rows are queued, possibly in
// another process. Wake-ups are hints; workers also poll.
type Signal interface {
	Raise(ctx context.Context, channel domain.Channel) error
	// Subscribe returns a channel that receives a value after Raise for the
	// given outbox channel. It is released when ctx ends.
	Subscribe(ctx context.Context, channel domain.Channel) <-chan struct{}
}

// RedisSignal fans wake-ups out over Redis pub/sub so the participant and
// admin processes wake each other.
type RedisSignal struct {
	client *redis.Client
	topic  string
	logger *zap.Logger
}

// NewRedisSignal publishes on topic.
func NewRedisSignal(client *redis.Client, topic string, logger *zap.Logger) *RedisSignal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSignal{client: client, topic: topic, logger: logger}
}

// Raise publishes the outbox channel name.
func (s *RedisSignal) Raise(ctx context.Context, channel domain.Channel) error {
	return s.client.Publish(ctx, s.topic, string(channel)).Err()
}

// Subscribe listens on the topic until ctx ends.
func (s *RedisSignal) Subscribe(ctx context.Context, channel domain.Channel) <-chan struct{} {
	out := make(chan struct{}, 1)
	pubsub := s.client.Subscribe(ctx, s.topic)
	go func() {
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					s.logger.Warn("redis signal subscription closed", zap.String("topic", s.topic))
					return
				}
				if msg.Payload != string(channel) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// LocalSignal wakes workers in the same process.
type LocalSignal struct {
	mu          sync.Mutex
	subscribers map[domain.Channel][]chan struct{}
}

// NewLocalSignal creates an in-process signal.
func NewLocalSignal() *LocalSignal {
	return &LocalSignal{subscribers: map[domain.Channel][]chan struct{}{}}
}

// Raise wakes every subscriber of channel without blocking.
func (s *LocalSignal) Raise(_ context.Context, channel domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers[channel] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx ends.
func (s *LocalSignal) Subscribe(ctx context.Context, channel domain.Channel) <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subscribers[channel] = append(s.subscribers[channel], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subscribers[channel]
		for i, candidate := range subs {
			if candidate == ch {
				s.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}()
	return ch
}

// NopSignal never wakes anyone; workers rely on polling alone.
type NopSignal struct{}

// Raise does nothing.
func (NopSignal) Raise(context.Context, domain.Channel) error { return nil }

// Subscribe returns a nil channel, which blocks forever in a select.
func (NopSignal) Subscribe(context.Context, domain.Channel) <-chan struct{} { return nil }
