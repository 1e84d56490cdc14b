// Package scheduler runs the lending sweepers on independent tickers.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"libraryhub/internal/metrics"
)

// JobFunc does one pass and reports how many records it changed.
type JobFunc func(ctx context.Context) (int, error)

type job struct {
	name       string
	interval   time.Duration
	runOnStart bool
	fn         JobFunc
	running    atomic.Bool
}

type Scheduler struct {
	logger  *slog.Logger
	metrics metrics.Recorder

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	wg      sync.WaitGroup
	started bool
}

func New(logger *slog.Logger, rec metrics.Recorder) *Scheduler {
	if rec == nil {
		rec = metrics.Nop()
	}
	return &Scheduler{logger: logger, metrics: rec, jobs: map[string]*job{}}
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(name string, interval time.Duration, runOnStart bool, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler: add %q after start", name)
	}
	if interval <= 0 {
		return fmt.Errorf("scheduler: job %q needs a positive interval", name)
	}
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("scheduler: job %q already registered", name)
	}
	s.jobs[name] = &job{name: name, interval: interval, runOnStart: runOnStart, fn: fn}
	s.order = append(s.order, name)
	return nil
}

// Start launches one poller per job. They stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	jobs := make([]*job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

// Wait blocks until every poller has stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler_job_started", "job", j.name, "interval", j.interval.String())
	if j.runOnStart {
		s.run(ctx, j)
	}

	for {
		select {
		case <-ticker.C:
			s.run(ctx, j)
		case <-ctx.Done():
			s.logger.Info("scheduler_job_stopped", "job", j.name)
			return
		}
	}
}

// RunNow runs a registered job once, outside its schedule. ok is false
// when the job is already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) (processed int, ok bool, err error) {
	s.mu.Lock()
	j, found := s.jobs[name]
	s.mu.Unlock()
	if !found {
		return 0, false, fmt.Errorf("scheduler: unknown job %q", name)
	}
	return s.run(ctx, j)
}

func (s *Scheduler) run(ctx context.Context, j *job) (int, bool, error) {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn("scheduler_job_skipped", "job", j.name, "reason", "previous run still active")
		return 0, false, nil
	}
	defer j.running.Store(false)

	start := time.Now()
	processed, err := s.safeRun(ctx, j)
	took := time.Since(start)
	s.metrics.SweepCompleted(j.name, processed, took, err)

	if err != nil {
		s.logger.Error("scheduler_job_failed", "job", j.name, "processed", processed, "duration", took, "error", err)
		return processed, true, err
	}
	s.logger.Info("scheduler_job_completed", "job", j.name, "processed", processed, "duration", took)
	return processed, true, nil
}

func (s *Scheduler) safeRun(ctx context.Context, j *job) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
	}()
	return j.fn(ctx)
}
