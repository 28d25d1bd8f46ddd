package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/jobflow/pkg/schema"
)

// Job is a named housekeeping task run on a cron schedule.
type Job struct {
	Name string
	Spec string // cron spec, seconds optional, descriptors allowed
	Run  func(ctx context.Context) error
}

// Scheduler runs housekeeping jobs (idle session reaping, store vacuum).
// A job still running when its next slot arrives is skipped.
type Scheduler struct {
	parser cron.Parser
	cron   *cron.Cron
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	jobs   map[string]Job

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// Parser accepts five- or six-field specs (leading seconds optional) and
// descriptors such as @daily or @every 5m.
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewScheduler creates a stopped Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		parser:   Parser,
		cron:     cron.New(cron.WithParser(Parser), cron.WithLocation(time.UTC)),
		logger:   logger,
		ctx:      context.Background(),
		jobs:     make(map[string]Job),
		inflight: make(map[string]struct{}),
	}
}

// Add registers a job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return schema.NewError(schema.ErrCodeValidation, "job needs a name and a run function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return schema.NewErrorf(schema.ErrCodeConflict, "job %q already scheduled", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "job %q: invalid schedule %q", job.Name, job.Spec).WithCause(err)
	}
	s.jobs[job.Name] = job
	return nil
}

// Start launches the cron loop. Jobs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

// Stop halts the loop and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.cancel = nil
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunNow runs the named job synchronously, outside its schedule. It
// returns CONFLICT if the job is already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "job %q not scheduled", name)
	}
	if !s.tryAcquire(name) {
		return schema.NewErrorf(schema.ErrCodeConflict, "job %q is already running", name)
	}
	defer s.releaseJob(name)
	return job.Run(ctx)
}

func (s *Scheduler) run(job Job) {
	if !s.tryAcquire(job.Name) {
		s.logger.Debug("skipping job still running", slog.String("job", job.Name))
		return
	}
	defer s.releaseJob(job.Name)

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("scheduled job failed", slog.String("job", job.Name), slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("scheduled job done", slog.String("job", job.Name), slog.Duration("took", time.Since(start)))
}

func (s *Scheduler) tryAcquire(name string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[name]; ok {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Scheduler) releaseJob(name string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, name)
}

// NextRuns returns the next n activation times of spec after from. The
// designer uses it to preview a start node's schedule.
func NextRuns(spec string, from time.Time, n int) ([]time.Time, error) {
	schedule, err := Parser.Parse(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse cron expression %q", spec).WithCause(err)
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = schedule.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
