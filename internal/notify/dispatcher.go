package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"libraryhub/internal/metrics"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

const deliveryTimeout = 5 * time.Second

// Dispatcher makes a Sink fire-and-forget: Emit enqueues and returns, a
// fixed set of workers delivers. A full queue drops the event.
type Dispatcher struct {
	next        Sink
	logger      *slog.Logger
	metrics     metrics.Recorder
	workerCount int
	queue       chan Event
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	closed      bool
	closeMux    sync.RWMutex
}

func NewDispatcher(next Sink, workerCount, queueSize int, logger *slog.Logger, m metrics.Recorder) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < workerCount {
		queueSize = workerCount * 2
	}
	if m == nil {
		m = metrics.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		next:        next,
		logger:      logger,
		metrics:     m,
		workerCount: workerCount,
		queue:       make(chan Event, queueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches worker goroutines
func (d *Dispatcher) Start() {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("notify_dispatcher_started", "workers", d.workerCount)
}

func (d *Dispatcher) Emit(ctx context.Context, event Event) error {
	d.closeMux.RLock()
	defer d.closeMux.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- event:
		return nil
	default:
		d.metrics.NotificationDropped()
		d.logger.Warn("notification_dropped", "type", event.Type, "user_id", event.UserID)
		return nil
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.closeMux.Lock()
	if !d.closed {
		close(d.queue)
		d.closed = true
	}
	d.closeMux.Unlock()

	d.wg.Wait()
	d.cancel()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for event := range d.queue {
		ctx, cancel := context.WithTimeout(d.ctx, deliveryTimeout)
		if err := d.next.Emit(ctx, event); err != nil {
			d.logger.Error("notification_delivery_failed",
				"worker", id,
				"type", event.Type,
				"user_id", event.UserID,
				"error", err)
		}
		cancel()
	}
}
