package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderQueue holds events until their delivery time.
type ReminderQueue interface {
	Schedule(ctx context.Context, at time.Time, event Event) error
	// Due removes and returns every event scheduled at or before now.
	Due(ctx context.Context, now time.Time) ([]Event, error)
}

const reminderKey = "reminders:loan"

// RedisReminderQueue keeps reminders in a sorted set scored by unix time.
type RedisReminderQueue struct {
	client *redis.Client
	key    string
}

func NewRedisReminderQueue(client *redis.Client) *RedisReminderQueue {
	return &RedisReminderQueue{client: client, key: reminderKey}
}

func (q *RedisReminderQueue) Schedule(ctx context.Context, at time.Time, event Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}
	if err := q.client.ZAdd(ctx, q.key, redis.Z{Score: float64(at.Unix()), Member: string(data)}).Err(); err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	return nil
}

// Due claims members one by one with ZREM so two pollers never deliver
// the same reminder.
func (q *RedisReminderQueue) Due(ctx context.Context, now time.Time) ([]Event, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}

	var events []Event
	for _, m := range members {
		removed, err := q.client.ZRem(ctx, q.key, m).Result()
		if err != nil {
			return events, fmt.Errorf("claim reminder: %w", err)
		}
		if removed == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(m), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

type scheduled struct {
	at    time.Time
	event Event
}

type MemoryReminderQueue struct {
	mu    sync.Mutex
	items []scheduled
}

func NewMemoryReminderQueue() *MemoryReminderQueue {
	return &MemoryReminderQueue{}
}

func (q *MemoryReminderQueue) Schedule(ctx context.Context, at time.Time, event Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, scheduled{at: at, event: event})
	sort.SliceStable(q.items, func(i, j int) bool { return q.items[i].at.Before(q.items[j].at) })
	return nil
}

func (q *MemoryReminderQueue) Due(ctx context.Context, now time.Time) ([]Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := 0
	for i < len(q.items) && !q.items[i].at.After(now) {
		i++
	}
	var events []Event
	for _, s := range q.items[:i] {
		events = append(events, s.event)
	}
	q.items = q.items[i:]
	return events, nil
}

// Len reports how many reminders are waiting.
func (q *MemoryReminderQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
