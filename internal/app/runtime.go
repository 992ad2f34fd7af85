// Package app assembles the shared runtime of the participant and admin bot
// processes: configuration, logging, stores, events and services.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/auth"
	"github.com/danilaloko/eco-bot/internal/config"
	"github.com/danilaloko/eco-bot/internal/deadline"
	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/notify"
	"github.com/danilaloko/eco-bot/internal/observability"
	"github.com/danilaloko/eco-bot/internal/persistence"
	"github.com/danilaloko/eco-bot/internal/repository"
	"github.com/danilaloko/eco-bot/internal/service"
	"github.com/danilaloko/eco-bot/internal/storage"
	"github.com/danilaloko/eco-bot/internal/worker"
)

// Services groups the domain services used by the front ends.
type Services struct {
	Registration *service.RegistrationService
	Tasks        *service.TaskService
	Submissions  *service.SubmissionService
	Moderation   *service.ModerationService
	Potential    *service.PotentialMessageService
	Support      *service.SupportService
	Analytics    *service.AnalyticsService
	Router       *service.InboundRouter
}

// Runtime holds process-wide dependencies.
type Runtime struct {
	Config     *config.Config
	Logger     *zap.Logger
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Store      repository.Store
	Dispatcher events.Dispatcher
	Signal     notify.Signal
	Metrics    *observability.Metrics
	Admins     *auth.AdminAllowList
	Archive    storage.MediaArchive
	Services   Services
}

// Bootstrap loads configuration and connects every backing service.
// The caller owns the returned runtime and must Close it.
func Bootstrap(ctx context.Context, component string) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(zap.String("component", component))

	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	rt.Postgres, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if rt.Postgres.Pool == nil {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, rt.Postgres.PoolHandle(), logger); err != nil {
			rt.Postgres.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	rt.Store = repository.NewPostgresStore(rt.Postgres.PoolHandle())

	rt.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
	if rt.Redis.Enabled() {
		rt.Signal = notify.NewRedisSignal(rt.Redis.Client, cfg.Redis.OutboxChannel, logger)
	} else {
		rt.Signal = notify.NewLocalSignal()
	}

	rt.Archive, err = storage.NewMediaArchive(ctx, cfg.Storage)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init media archive: %w", err)
	}
	if rt.Archive.Enabled() {
		logger.Info("media archive enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	rt.Dispatcher = events.NewInMemoryDispatcher()
	service.NewNotificationService(rt.Dispatcher, rt.Signal, logger).RegisterHandlers()

	rt.Admins = auth.NewAdminAllowList(cfg.Admin.IDs)
	if len(rt.Admins.AdminIDs()) == 0 {
		logger.Warn("ADMIN_IDS is empty; nobody can moderate")
	}
	rt.Services = newServices(rt, deadline.New(cfg.Challenge.Location))
	return rt, nil
}

func newServices(rt *Runtime, deadlines *deadline.Calculator) Services {
	loc := rt.Config.Challenge.Location
	registration := service.NewRegistrationService(service.RegistrationDependencies{
		Store: rt.Store, Dispatcher: rt.Dispatcher, Logger: rt.Logger, Admins: rt.Admins,
	})
	submissions := service.NewSubmissionService(service.SubmissionDependencies{
		Store: rt.Store, Dispatcher: rt.Dispatcher, Logger: rt.Logger, Admins: rt.Admins, Location: loc,
	})
	support := service.NewSupportService(service.SupportDependencies{
		Store: rt.Store, Dispatcher: rt.Dispatcher, Logger: rt.Logger, Admins: rt.Admins,
	})
	potential := service.NewPotentialMessageService(service.PotentialMessageDependencies{
		Store: rt.Store, Dispatcher: rt.Dispatcher, Logger: rt.Logger, Admins: rt.Admins,
	})
	return Services{
		Registration: registration,
		Tasks: service.NewTaskService(service.TaskDependencies{
			Store: rt.Store, Dispatcher: rt.Dispatcher, Logger: rt.Logger, Deadlines: deadlines,
		}),
		Submissions: submissions,
		Moderation: service.NewModerationService(service.ModerationDependencies{
			Store: rt.Store, Dispatcher: rt.Dispatcher, Logger: rt.Logger, Submissions: submissions, Location: loc,
		}),
		Potential: potential,
		Support:   support,
		Analytics: service.NewAnalyticsService(rt.Store, nil),
		Router: service.NewInboundRouter(service.InboundRouterDependencies{
			Registration: registration,
			Submissions:  submissions,
			Support:      support,
			Potential:    potential,
			Logger:       rt.Logger,
		}),
	}
}

// NotificationWorker builds the outbox worker for one delivery channel.
func (rt *Runtime) NotificationWorker(channel domain.Channel, notifier notify.Notifier) *worker.NotificationWorker {
	return worker.NewNotificationWorker(worker.NotificationWorkerDependencies{
		Store:    rt.Store,
		Notifier: notifier,
		Signal:   rt.Signal,
		Channel:  channel,
		Config:   rt.Config.Notification,
		Logger:   rt.Logger,
		Metrics:  rt.Metrics,
	})
}

// Close releases connections and flushes the logger.
func (rt *Runtime) Close() {
	rt.Redis.Close()
	rt.Postgres.Close()
	_ = rt.Logger.Sync()
}

// WaitForShutdown blocks until SIGINT or SIGTERM, or until ctx is done.
func WaitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}

// ShutdownTimeout bounds how long in-flight work may take after a signal.
const ShutdownTimeout = 10 * time.Second
