// Package scheduler runs the daemon's recurring jobs on cron cadences.
// It owns no domain logic: callers register named closures and the
// scheduler handles timing, per-job timeouts, overlap suppression and
// graceful shutdown.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one recurring unit of work. The context carries the job's
// deadline; implementations must honor cancellation.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron with UTC scheduling and per-job guards.
type Scheduler struct {
	cron    *cron.Cron
	logger  *logrus.Entry
	mu      sync.RWMutex
	running bool
	jobs    map[string]cron.EntryID
	inFlight map[string]*sync.Mutex
}

// New creates an empty scheduler. All cadences evaluate in UTC.
func New(log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   log.WithField("component", "scheduler"),
		jobs:     make(map[string]cron.EntryID),
		inFlight: make(map[string]*sync.Mutex),
	}
}

// Schedule registers a named job on a cron expression with a hard
// per-run timeout. A run that overlaps a still-executing previous run
// of the same job is skipped, not queued.
func (s *Scheduler) Schedule(name, expression string, timeout time.Duration, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("cannot schedule %q while scheduler is running", name)
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q is already scheduled", name)
	}

	guard := &sync.Mutex{}
	s.inFlight[name] = guard

	entryID, err := s.cron.AddFunc(expression, func() {
		if !guard.TryLock() {
			s.logger.WithField("job", name).Warn("Skipping run: previous run still in flight")
			return
		}
		defer guard.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		started := time.Now()
		if err := job(ctx); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"job":      name,
				"duration": time.Since(started).String(),
			}).Error("Scheduled job failed")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"job":      name,
			"duration": time.Since(started).String(),
		}).Debug("Scheduled job completed")
	})
	if err != nil {
		delete(s.inFlight, name)
		return fmt.Errorf("failed to schedule %q on %q: %w", name, expression, err)
	}

	s.jobs[name] = entryID
	s.logger.WithFields(logrus.Fields{
		"job":      name,
		"schedule": expression,
	}).Info("Job scheduled")
	return nil
}

// Start begins dispatching. At least one job must be registered.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.running = true
	s.logger.WithField("jobs", len(s.jobs)).Info("Scheduler started")
	return nil
}

// Stop halts dispatch and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Scheduler stopped")
}

// IsRunning reports whether dispatch is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// NextRun returns the earliest upcoming fire time across all jobs, or
// the zero time when nothing is scheduled.
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next time.Time
	for _, id := range s.jobs {
		entry := s.cron.Entry(id)
		if !entry.Valid() {
			continue
		}
		if next.IsZero() || entry.Next.Before(next) {
			next = entry.Next
		}
	}
	return next
}

// Jobs returns the registered job names, for the status surface.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
