// Package schedule turns schedule expressions into timer jobs and publishes
// firings on a channel. It owns no domain logic: consumers decide what a
// firing means for the job id they registered.
package schedule

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
)

// firesBuffer bounds the firing queue. Firings beyond it are dropped rather
// than blocking the cron goroutine.
const firesBuffer = 64

// Firing is one scheduled job going off.
type Firing struct {
	ID string
	At time.Time
}

// Recorder receives scheduler events for metrics. May be nil.
type Recorder interface {
	RecordJobFired()
	RecordJobDropped()
}

// Scheduler manages named jobs on a cron runner. Registering an id that is
// already live replaces the previous registration, so at most one timer
// exists per id.
type Scheduler struct {
	cron     *cron.Cron
	logger   *logger.Logger
	recorder Recorder

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool

	fires chan Firing
}

// NewScheduler creates a scheduler. recorder may be nil.
func NewScheduler(log *logger.Logger, recorder Recorder) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		logger:   log,
		recorder: recorder,
		entries:  make(map[string]cron.EntryID),
		fires:    make(chan Firing, firesBuffer),
	}
}

// Fires returns the channel firings are published on. The channel is never
// closed; consumers stop via their own context.
func (s *Scheduler) Fires() <-chan Firing {
	return s.fires
}

// Add registers a job under id. An existing registration for the same id is
// cancelled first.
func (s *Scheduler) Add(id string, spec Spec) error {
	if id == "" {
		return fmt.Errorf("job id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before touching the live entry: a bad spec must leave any
	// prior registration armed, and the old timer must be gone before the
	// replacement exists so there is never a second live timer for the id.
	var sched cron.Schedule
	if spec.Kind == KindInterval {
		sched = cron.Every(spec.Every)
	} else {
		expr, err := spec.CronExpr()
		if err != nil {
			return err
		}
		sched, err = cron.ParseStandard(expr)
		if err != nil {
			return fmt.Errorf("add job %q: %w", id, err)
		}
	}

	if prev, ok := s.entries[id]; ok {
		s.cron.Remove(prev)
		s.logger.Debug("replaced scheduled job", logger.Field{Key: "id", Value: id})
	}
	s.entries[id] = s.cron.Schedule(sched, s.job(id))
	return nil
}

// AddCron registers a job under id from a raw 5-field cron expression.
func (s *Scheduler) AddCron(id, expr string) error {
	if id == "" {
		return fmt.Errorf("job id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("add job %q: %w", id, err)
	}
	if prev, ok := s.entries[id]; ok {
		s.cron.Remove(prev)
	}
	s.entries[id] = s.cron.Schedule(sched, s.job(id))
	return nil
}

// AddDSL parses dsl and registers the job. A malformed expression is logged
// and reported as false; it never takes the scheduler down.
func (s *Scheduler) AddDSL(id, dsl string) bool {
	spec, err := ParseSpec(dsl)
	if err != nil {
		s.logger.Warn("skipping job with invalid schedule",
			logger.Field{Key: "id", Value: id},
			logger.Field{Key: "schedule", Value: dsl},
			logger.Field{Key: "error", Value: err.Error()})
		return false
	}
	if err := s.Add(id, spec); err != nil {
		s.logger.Warn("failed to register job",
			logger.Field{Key: "id", Value: id},
			logger.Field{Key: "error", Value: err.Error()})
		return false
	}
	return true
}

// Unschedule cancels the job registered under id. It reports whether a live
// registration existed.
func (s *Scheduler) Unschedule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[id]
	if !ok {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.entries, id)
	return true
}

// Has reports whether id has a live registration.
func (s *Scheduler) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// IDs returns the ids of all live registrations, sorted.
func (s *Scheduler) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start begins running registered jobs. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts the cron runner and waits for in-flight jobs. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// job builds the cron callback for id. The send is non-blocking so a stuck
// consumer cannot block the cron goroutine; overflow firings are dropped
// and counted.
func (s *Scheduler) job(id string) cron.Job {
	return cron.FuncJob(func() {
		firing := Firing{ID: id, At: time.Now()}
		select {
		case s.fires <- firing:
			if s.recorder != nil {
				s.recorder.RecordJobFired()
			}
		default:
			s.logger.Warn("dropping firing, queue full",
				logger.Field{Key: "id", Value: id})
			if s.recorder != nil {
				s.recorder.RecordJobDropped()
			}
		}
	})
}
