package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"property-search/internal/boundary"
)

// Job is a named task run on a cron schedule ("@every 30s", "0 */5 * * * *" ...).
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs background maintenance for the web front end.
type Scheduler struct {
	cron      *cron.Cron
	jobs      map[string]Job
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a scheduler whose specs may carry an optional seconds field.
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		))),
		jobs: make(map[string]Job),
	}
}

// Add registers a job. It fails on a duplicate name or an invalid spec.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("scheduler: job %q already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("scheduler: job %q: invalid spec %q: %w", job.Name, job.Spec, err)
	}
	s.jobs[job.Name] = job
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return
	}
	s.cron.Start()
	s.isRunning = true
	slog.Info("Scheduler: started", "jobs", len(s.jobs))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	slog.Info("Scheduler: stopped")
}

// RunNow runs a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	return s.execute(job)
}

func (s *Scheduler) execute(job Job) error {
	ctx := context.Background()
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := boundary.Guard(func() error { return job.Run(ctx) })
	if err != nil {
		slog.Warn("Scheduler: job failed", "job", job.Name, "duration", time.Since(start), "error", err)
		return err
	}
	slog.Debug("Scheduler: job finished", "job", job.Name, "duration", time.Since(start))
	return nil
}
