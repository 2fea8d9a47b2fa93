// Package scheduler runs the periodic jobs of the proactive pipeline:
// the sweep that evaluates every user for outreach and the drain that
// re-evaluates queued deliveries.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Job names.
const (
	JobSweep = "sweep"
	JobDrain = "drain"
)

// JobState tracks the last outcome of a registered job.
type JobState struct {
	LastRunAt  time.Time
	LastStatus string
	LastError  string
}

type job struct {
	name    string
	spec    string
	run     func(ctx context.Context) error
	entryID rcron.EntryID
	state   JobState
}

// Service schedules named jobs on cron specs. Jobs are registered
// before Start; each run's outcome is recorded for status reporting.
type Service struct {
	mu     sync.Mutex
	jobs   map[string]*job
	order  []string
	cron   *rcron.Cron
	cancel context.CancelFunc
	runCtx context.Context
}

func NewService() *Service {
	return &Service{jobs: make(map[string]*job)}
}

// Register adds a named job. Registering after Start returns an error.
func (s *Service) Register(name, spec string, run func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = &job{name: name, spec: spec, run: run}
	s.order = append(s.order, name)
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel
	s.cron = rcron.New()

	for _, name := range s.order {
		j := s.jobs[name]
		id, err := s.cron.AddFunc(j.spec, func() { s.execute(j) })
		if err != nil {
			cancel()
			s.cron = nil
			return fmt.Errorf("register job %s (%s): %w", j.name, j.spec, err)
		}
		j.entryID = id
	}

	s.cron.Start()
	log.Printf("[scheduler] started with %d jobs", len(s.jobs))
	return nil
}

func (s *Service) execute(j *job) {
	log.Printf("[scheduler] executing job %s", j.name)

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	err := j.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	j.state.LastRunAt = time.Now()
	if err != nil {
		j.state.LastStatus = "error"
		j.state.LastError = err.Error()
		log.Printf("[scheduler] job %s error: %v", j.name, err)
	} else {
		j.state.LastStatus = "ok"
		j.state.LastError = ""
	}
}

// RunNow executes a registered job immediately, outside its schedule.
func (s *Service) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	started := s.cron != nil
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	if !started {
		return fmt.Errorf("scheduler not started")
	}
	s.execute(j)
	return nil
}

// States returns a snapshot of every job's last run state.
func (s *Service) States() map[string]JobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobState, len(s.jobs))
	for name, j := range s.jobs {
		out[name] = j.state
	}
	return out
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	c := s.cron
	s.cancel = nil
	s.cron = nil
	s.runCtx = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[scheduler] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[scheduler] stopped")
}
