package main

import (
	"context"
	"log"
	"sync"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/danilaloko/eco-bot/internal/api/http"
	"github.com/danilaloko/eco-bot/internal/api/http/handlers"
	"github.com/danilaloko/eco-bot/internal/app"
	"github.com/danilaloko/eco-bot/internal/auth"
	"github.com/danilaloko/eco-bot/internal/bot"
	"github.com/danilaloko/eco-bot/internal/bot/admin"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/notify"
	"github.com/danilaloko/eco-bot/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Bootstrap(ctx, "admin-bot")
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer rt.Close()
	logger := rt.Logger
	cfg := rt.Config
	svc := rt.Services

	api, err := bot.NewAPI(cfg.Telegram.AdminToken, cfg.Telegram, logger)
	if err != nil {
		logger.Fatal("failed to init admin bot api", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	chatBot := admin.New(admin.Dependencies{
		API:          api,
		Admins:       rt.Admins,
		Tokens:       tokens,
		Tasks:        svc.Tasks,
		Moderation:   svc.Moderation,
		Potential:    svc.Potential,
		Support:      svc.Support,
		Analytics:    svc.Analytics,
		Archive:      rt.Archive,
		Logger:       logger,
		Metrics:      rt.Metrics,
		Location:     cfg.Challenge.Location,
		PollTimeout:  cfg.Telegram.PollTimeoutSeconds,
		DashboardURL: "http://" + cfg.App.Addr() + "/api/stats",
	})
	deliveries := rt.NotificationWorker(domain.ChannelAdmin, notify.NewTelegramNotifier(api))
	retention := worker.NewRetentionWorker(rt.Store, cfg.Retention, logger, nil)

	server := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(server, logger, rt.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, rt.Postgres, rt.Redis),
		Dashboard: handlers.NewDashboardHandler(handlers.DashboardDependencies{
			Analytics: svc.Analytics,
			Tasks:     svc.Tasks,
			Archive:   rt.Archive,
			Metrics:   rt.Metrics,
			Logger:    logger,
		}),
		AdminMiddleware: auth.NewAdminMiddleware(tokens, rt.Admins),
	})

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){chatBot.Run, deliveries.Run, retention.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}
	go func() {
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			cancel()
		}
	}()

	app.WaitForShutdown(ctx, logger)
	cancel()
	if err := server.ShutdownWithTimeout(app.ShutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
}
