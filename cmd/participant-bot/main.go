package main

import (
	"context"
	"log"
	"net/http"
	"sync"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/app"
	"github.com/danilaloko/eco-bot/internal/bot"
	"github.com/danilaloko/eco-bot/internal/bot/participant"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/notify"
	"github.com/danilaloko/eco-bot/internal/storage"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Bootstrap(ctx, "participant-bot")
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer rt.Close()
	logger := rt.Logger
	cfg := rt.Config

	api, err := bot.NewAPI(cfg.Telegram.ParticipantToken, cfg.Telegram, logger)
	if err != nil {
		logger.Fatal("failed to init participant bot api", zap.Error(err))
	}

	archiver := storage.NewArchiver(rt.Archive, api, &http.Client{Timeout: storage.DownloadTimeout}, logger)
	svc := rt.Services
	chatBot := participant.New(participant.Dependencies{
		API:          api,
		Router:       svc.Router,
		Registration: svc.Registration,
		Tasks:        svc.Tasks,
		Submissions:  svc.Submissions,
		Support:      svc.Support,
		Archiver:     archiver,
		Logger:       logger,
		Metrics:      rt.Metrics,
		Location:     cfg.Challenge.Location,
		PollTimeout:  cfg.Telegram.PollTimeoutSeconds,
	})
	deliveries := rt.NotificationWorker(domain.ChannelParticipant, notify.NewTelegramNotifier(api))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		chatBot.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		deliveries.Run(ctx)
	}()

	app.WaitForShutdown(ctx, logger)
	cancel()
	wg.Wait()
}
