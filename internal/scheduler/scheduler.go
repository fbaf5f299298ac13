// Package scheduler runs the auction's date-triggered transitions. It is not
// a general-purpose job scheduler: every job is a one-shot callback keyed by
// a human-readable id, and re-adding an id replaces the pending job instead
// of duplicating it.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/openprocurement/auction-worker/internal/journal"
)

type Handler func(ctx context.Context)

type job struct {
	id     string
	runAt  time.Time
	fn     Handler
	cancel context.CancelFunc
}

type Scheduler struct {
	mu           sync.Mutex
	jobs         map[string]*job
	misfireGrace time.Duration
	logger       *slog.Logger
	onMissed     func(id string)

	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(misfireGrace time.Duration, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:         make(map[string]*job),
		misfireGrace: misfireGrace,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// OnMissed registers a hook invoked whenever a job fires outside its
// misfire grace window.
func (s *Scheduler) OnMissed(fn func(id string)) {
	s.mu.Lock()
	s.onMissed = fn
	s.mu.Unlock()
}

// AddDateJob schedules fn at runAt. A job with the same id replaces the
// pending one, so rebuilding the schedule against an unchanged stage list
// is idempotent.
func (s *Scheduler) AddDateJob(id string, runAt time.Time, fn Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[id]; ok && existing.cancel != nil {
		existing.cancel()
	}

	j := &job{id: id, runAt: runAt, fn: fn}
	s.jobs[id] = j
	if s.started {
		s.spawn(j)
	}
}

// Start arms every registered job. Jobs added afterwards are armed
// immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	for _, j := range s.jobs {
		s.spawn(j)
	}
}

// Shutdown cancels all pending jobs and waits for in-flight handlers.
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// JobIDs returns the registered job ids sorted by fire time.
func (s *Scheduler) JobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].runAt.Before(jobs[k].runAt) })
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.id
	}
	return ids
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// spawn arms one job. Caller holds s.mu.
func (s *Scheduler) spawn(j *job) {
	jobCtx, jobCancel := context.WithCancel(s.ctx)
	j.cancel = jobCancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(time.Until(j.runAt))
		defer timer.Stop()

		select {
		case <-jobCtx.Done():
			return
		case <-timer.C:
		}

		lateness := time.Since(j.runAt)
		if lateness > s.misfireGrace {
			s.logger.Error("scheduled job missed its window",
				"job_id", j.id,
				"run_at", j.runAt,
				"lateness", lateness,
				"message_id", journal.ServiceMissedJob,
			)
			s.mu.Lock()
			missed := s.onMissed
			s.mu.Unlock()
			if missed != nil {
				missed(j.id)
			}
			return
		}

		j.fn(jobCtx)
	}()
}
