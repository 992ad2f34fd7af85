// Package bot holds the pieces shared by the participant and admin chat
// front ends: the update loop, payload extraction and refusal texts.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/config"
)

// API is the subset of *tgbotapi.BotAPI the front ends use.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// HandlerFunc processes one update.
type HandlerFunc func(ctx context.Context, update tgbotapi.Update)

// NewAPI authorizes a bot token.
func NewAPI(token string, cfg config.TelegramConfig, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Debug
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return api, nil
}

// Run long-polls updates until ctx is cancelled. Updates from different
// chats are handled concurrently; updates from one chat are handled one at a
// time in arrival order so dialog answers are applied in sequence.
func Run(ctx context.Context, api API, timeoutSeconds int, logger *zap.Logger, handle HandlerFunc) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSeconds
	if u.Timeout <= 0 {
		u.Timeout = 60
	}
	updates := api.GetUpdatesChan(u)

	queues := &chatQueues{pending: map[int64][]tgbotapi.Update{}}
	defer queues.wg.Wait()
	run := func(update tgbotapi.Update) { safeHandle(ctx, logger, handle, update) }

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			queues.submit(ChatID(update), update, run)
		}
	}
}

func safeHandle(ctx context.Context, logger *zap.Logger, handle HandlerFunc, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update handler panicked",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	hctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	handle(hctx, update)
}

// ChatID returns the chat an update belongs to, or 0.
func ChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

// chatQueues runs at most one drain goroutine per chat. A key present in
// pending means its drainer is running.
type chatQueues struct {
	mu      sync.Mutex
	pending map[int64][]tgbotapi.Update
	wg      sync.WaitGroup
}

func (q *chatQueues) submit(chatID int64, update tgbotapi.Update, run func(tgbotapi.Update)) {
	q.mu.Lock()
	queue, active := q.pending[chatID]
	q.pending[chatID] = append(queue, update)
	q.mu.Unlock()
	if active {
		return
	}
	q.wg.Add(1)
	go q.drain(chatID, run)
}

func (q *chatQueues) drain(chatID int64, run func(tgbotapi.Update)) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		queue := q.pending[chatID]
		if len(queue) == 0 {
			delete(q.pending, chatID)
			q.mu.Unlock()
			return
		}
		next := queue[0]
		q.pending[chatID] = queue[1:]
		q.mu.Unlock()
		run(next)
	}
}
