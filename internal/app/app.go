// Package app assembles the lending services from configuration. Both the
// API server and the librarian CLI start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"libraryhub/database"
	"libraryhub/internal/cache"
	"libraryhub/internal/config"
	"libraryhub/internal/metrics"
	"libraryhub/internal/microservices/http-api/repository"
	"libraryhub/internal/microservices/http-api/service"
	"libraryhub/internal/notify"
	"libraryhub/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const notifyQueueSize = 1024

type App struct {
	Config *config.Config
	Logger *slog.Logger

	Ledger        repository.Ledger
	Cache         cache.Cache
	Hub           *notify.Hub
	Metrics       metrics.Recorder
	MetricsHandle http.Handler // nil unless PROMETHEUS_ENABLED

	Loans         service.LoanService
	Reservations  service.ReservationService
	Fines         service.FineService
	Books         service.BookService
	Notifications service.NotificationService

	Scheduler *scheduler.Scheduler

	db         *gorm.DB
	redis      *cache.RedisCache
	nats       *notify.NATSPublisher
	dispatcher *notify.Dispatcher
}

// New connects the configured backends. Empty DATABASE_URL, REDIS_URL and
// NATS_URL fall back to in-process implementations.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.Nop()}

	if cfg.PrometheusEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.Metrics = metrics.NewPrometheus(reg)
		a.MetricsHandle = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	notifications := repository.NewMemoryNotificationRepository()
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.Ledger = repository.NewGormLedger(db, logger)
		notifications = repository.NewNotificationRepository(db)
	} else {
		logger.Warn("database_not_configured", "ledger", "memory")
		a.Ledger = repository.NewMemoryLedger()
	}

	var reminders notify.ReminderQueue = notify.NewMemoryReminderQueue()
	a.Cache = cache.NewMemoryCache()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rc
		a.Cache = rc
		reminders = notify.NewRedisReminderQueue(rc.Client())
	}

	a.Hub = notify.NewHub(logger)
	sinks := []notify.Sink{notify.NewBroadcaster(a.Hub, notifications, logger)}
	if cfg.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.nats = pub
		sinks = append(sinks, pub)
	}
	a.dispatcher = notify.NewDispatcher(notify.Multi(sinks...), cfg.NotifyWorkers, notifyQueueSize, logger, a.Metrics)
	a.dispatcher.Start()

	deps := service.Deps{
		Ledger:    a.Ledger,
		Cache:     a.Cache,
		Notifier:  a.dispatcher,
		Reminders: reminders,
		Metrics:   a.Metrics,
		Logger:    logger,
	}
	policy := service.PolicyFromConfig(cfg)

	a.Reservations = service.NewReservationService(deps, policy)
	a.Loans = service.NewLoanService(deps, policy, a.Reservations)
	a.Fines = service.NewFineService(deps)
	a.Books = service.NewBookService(deps, policy)
	a.Notifications = service.NewNotificationService(notifications)

	a.Scheduler = scheduler.New(logger, a.Metrics)
	err := scheduler.RegisterLendingJobs(a.Scheduler, a.Loans, a.Reservations, scheduler.Intervals{
		Overdue:      cfg.OverdueSweepInterval,
		Reservations: cfg.ReservationSweepInterval,
		Reminders:    cfg.ReminderPollInterval,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	return a, nil
}

// Close stops delivery and releases every connection. Queued notifications
// are flushed first.
func (a *App) Close() error {
	var errs []error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.Hub != nil {
		a.Hub.Close()
	}
	a.nats.Close()
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, database.Close(a.db))
	}
	return errors.Join(errs...)
}
