// Package scheduler keeps the registry of background jobs. A job runs on its
// cron schedule, on request by name, or both, and every run is recorded so
// the jobs API can report it.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownJob is returned when running a name that was never registered.
	ErrUnknownJob = errors.New("job not registered")
	// ErrJobRunning is returned when a job is triggered while a run is in flight.
	ErrJobRunning = errors.New("job is already running")
)

// Schedules use six fields with seconds first, or a descriptor:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 0 6 * * MON-FRI"  - 6 AM weekdays
//   - "@every 30s"         - Every 30 seconds
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Status reports one registered job and the outcome of its last run.
type Status struct {
	Name           string     `json:"name"`
	Schedule       string     `json:"schedule,omitempty"`
	NextRun        *time.Time `json:"next_run,omitempty"`
	Running        bool       `json:"running"`
	Runs           int        `json:"runs"`
	Failures       int        `json:"failures"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	LastDurationMs int64      `json:"last_duration_ms,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

type entry struct {
	job      Job
	schedule string
	id       cron.EntryID
	log      zerolog.Logger
	running  atomic.Bool

	mu       sync.Mutex
	runs     int
	failures int
	lastRun  time.Time
	lastDur  time.Duration
	lastErr  error
}

// Scheduler owns the registered jobs and the cron loop that fires them.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*entry
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithParser(scheduleParser)),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*entry),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().
		Int("jobs", s.count()).
		Int("scheduled", len(s.cron.Entries())).
		Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers job under its name. A non-empty schedule is parsed and
// the job fires on it; an empty schedule registers the job for on-request
// runs only. Names are unique.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		log:      s.log.With().Str("job", name).Logger(),
	}
	if schedule != "" {
		parsed, err := scheduleParser.Parse(schedule)
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
		}
		e.id = s.cron.Schedule(parsed, cron.FuncJob(func() {
			_ = s.run(e, "schedule")
		}))
	}
	s.jobs[name] = e

	e.log.Info().
		Str("schedule", scheduleLabel(schedule)).
		Msg("Job registered")
	return nil
}

// Run executes the named job now and returns its error. It fails with
// ErrJobRunning instead of overlapping a run already in progress.
func (s *Scheduler) Run(name string) error {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(e, "request")
}

// Jobs returns the status of every registered job, sorted by name.
func (s *Scheduler) Jobs() []Status {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		st := e.status()
		if e.id != 0 {
			if next := s.cron.Entry(e.id).Next; !next.IsZero() {
				st.NextRun = &next
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) run(e *entry, trigger string) error {
	if !e.running.CompareAndSwap(false, true) {
		e.log.Warn().Str("trigger", trigger).Msg("Job still running, skipping")
		return ErrJobRunning
	}
	defer e.running.Store(false)

	e.log.Debug().Str("trigger", trigger).Msg("Running job")
	start := time.Now()
	err := e.job.Run()
	elapsed := time.Since(start)
	e.record(start, elapsed, err)

	if err != nil {
		e.log.Error().
			Err(err).
			Str("trigger", trigger).
			Dur("duration", elapsed).
			Msg("Job failed")
		return err
	}
	e.log.Debug().
		Str("trigger", trigger).
		Dur("duration", elapsed).
		Msg("Job completed")
	return nil
}

func (s *Scheduler) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (e *entry) record(start time.Time, elapsed time.Duration, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs++
	if err != nil {
		e.failures++
	}
	e.lastRun = start
	e.lastDur = elapsed
	e.lastErr = err
}

func (e *entry) status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Name:     e.job.Name(),
		Schedule: e.schedule,
		Running:  e.running.Load(),
		Runs:     e.runs,
		Failures: e.failures,
	}
	if !e.lastRun.IsZero() {
		last := e.lastRun.UTC()
		st.LastRun = &last
		st.LastDurationMs = e.lastDur.Milliseconds()
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}

func scheduleLabel(schedule string) string {
	if schedule == "" {
		return "manual"
	}
	return schedule
}
