package service

import (
	"context"
	"log/slog"
	"time"

	"libraryhub/internal/cache"
	"libraryhub/internal/config"
	"libraryhub/internal/metrics"
	"libraryhub/internal/microservices/http-api/repository"
	"libraryhub/internal/notify"

	"github.com/shopspring/decimal"
)

const sideEffectTimeout = 5 * time.Second

// Policy holds the lending rules.
type Policy struct {
	LoanPeriod       time.Duration
	FinePerDay       decimal.Decimal
	HoldPeriod       time.Duration
	ReminderLead     time.Duration
	MaxExtensionDays int

	BookTTL       time.Duration
	ListTTL       time.Duration
	StatisticsTTL time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriod:       14 * 24 * time.Hour,
		FinePerDay:       decimal.NewFromInt(5),
		HoldPeriod:       3 * 24 * time.Hour,
		ReminderLead:     48 * time.Hour,
		MaxExtensionDays: 14,
		BookTTL:          time.Hour,
		ListTTL:          2 * time.Minute,
		StatisticsTTL:    5 * time.Minute,
	}
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		LoanPeriod:       cfg.LoanPeriod(),
		FinePerDay:       cfg.FinePerDay,
		HoldPeriod:       cfg.HoldPeriod(),
		ReminderLead:     cfg.ReminderLead,
		MaxExtensionDays: cfg.MaxExtensionDays,
		BookTTL:          time.Duration(cfg.CacheTTL) * time.Second,
		ListTTL:          cfg.LoanListCacheTTL,
		StatisticsTTL:    cfg.StatisticsCacheTTL,
	}
}

// Deps are the collaborators shared by the lending services. Nil optional
// fields are replaced with no-op implementations.
type Deps struct {
	Ledger    repository.Ledger
	Cache     cache.Cache
	Notifier  notify.Sink
	Reminders notify.ReminderQueue
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	Clock     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = cache.Nop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop()
	}
	if d.Reminders == nil {
		d.Reminders = notify.NewMemoryReminderQueue()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

type reminder struct {
	at    time.Time
	event notify.Event
}

// sideEffects is collected inside a unit of work and applied only after it
// commits.
type sideEffects struct {
	keys      cache.KeySet
	events    []notify.Event
	reminders []reminder
}

func (fx *sideEffects) invalidate(keys ...string) {
	fx.keys.Add(keys...)
}

func (fx *sideEffects) notify(ev notify.Event) {
	fx.events = append(fx.events, ev)
}

func (fx *sideEffects) remind(at time.Time, ev notify.Event) {
	fx.reminders = append(fx.reminders, reminder{at: at, event: ev})
}

// apply runs committed side effects. Failures are logged, never returned:
// the mutation they follow is already durable.
func (d Deps) apply(ctx context.Context, op string, fx *sideEffects) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error("side_effect_panic", "op", op, "panic", r)
		}
	}()

	if keys := fx.keys.Keys(); len(keys) > 0 {
		if err := d.Cache.Del(ctx, keys...); err != nil {
			d.Logger.Warn("cache_invalidation_failed", "op", op, "keys", keys, "error", err)
		}
	}
	for _, r := range fx.reminders {
		if err := d.Reminders.Schedule(ctx, r.at, r.event); err != nil {
			d.Logger.Warn("reminder_schedule_failed", "op", op, "user_id", r.event.UserID, "error", err)
		}
	}
	for _, ev := range fx.events {
		if err := d.Notifier.Emit(ctx, ev); err != nil {
			d.Logger.Warn("notification_emit_failed", "op", op, "type", ev.Type, "user_id", ev.UserID, "error", err)
		}
	}
}

// readThrough serves key from cache or loads and stores it. Cache errors
// degrade to a plain load.
func readThrough[T any](ctx context.Context, d Deps, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	ok, err := cache.GetJSON(ctx, d.Cache, key, &cached)
	if err != nil {
		d.Logger.Warn("cache_read_failed", "key", key, "error", err)
	}
	if ok {
		return cached, nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}
	if err := cache.SetJSON(ctx, d.Cache, key, value, ttl); err != nil {
		d.Logger.Warn("cache_write_failed", "key", key, "error", err)
	}
	return value, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
