package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/digest/internal/common"
)

// runTimeout bounds one scheduled digest run
const runTimeout = 15 * time.Minute

// ErrJobRunning is returned when a run is requested while the same job is
// still running
var ErrJobRunning = errors.New("job already running")

// Job is a unit of scheduled work
type Job interface {
	Run() error
	Name() string
}

// Scheduler runs jobs on cron specs with a seconds field
type Scheduler struct {
	cron   *cron.Cron
	logger *common.Logger
}

// NewScheduler creates a stopped scheduler
func NewScheduler(logger *common.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// AddJob registers job on schedule, e.g. "0 30 16 * * MON-FRI"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.logger.Debug().Str("job", job.Name()).Msg("Running job")
		if err := job.Run(); err != nil {
			if errors.Is(err, ErrJobRunning) {
				s.logger.Warn().Str("job", job.Name()).Msg("Previous run still in progress, skipping")
				return
			}
			s.logger.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
			return
		}
		s.logger.Debug().Str("job", job.Name()).Msg("Job completed")
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("Job registered")
	return nil
}

// RunNow executes a job outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}

// Next returns the next activation time, zero when nothing is scheduled
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// exclusiveJob skips a run while a previous one of the same job is in
// flight, whether it was started by cron or by RunNow
type exclusiveJob struct {
	Job
	mu sync.Mutex
}

// Exclusive wraps job so that at most one run is in flight
func Exclusive(job Job) Job {
	return &exclusiveJob{Job: job}
}

func (e *exclusiveJob) Run() error {
	if !e.mu.TryLock() {
		return ErrJobRunning
	}
	defer e.mu.Unlock()
	return e.Job.Run()
}

type digestJob struct {
	app *App
}

func (j *digestJob) Name() string { return "digest" }

func (j *digestJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	_, err := j.app.RunOnce(ctx)
	return err
}
