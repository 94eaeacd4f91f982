package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/apply-app/apply-api/internal/logging"
)

// Publisher makes due job offers public.
type Publisher interface {
	PublishDueJobOffers(ctx context.Context, now time.Time) (int64, error)
}

// SchedulerConfig holds cron specs for the periodic jobs.
type SchedulerConfig struct {
	PromoteSpec string // delayed retries
	ReapSpec    string // crashed runs
	PublishSpec string // job-offer publication; empty disables it
}

// DefaultSchedulerConfig returns the default specs.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PromoteSpec: "@every 1s",
		ReapSpec:    "@every 1m",
		PublishSpec: "@every 5m",
	}
}

// Scheduler wraps robfig/cron and runs the runtime's housekeeping jobs.
type Scheduler struct {
	cron      *cron.Cron
	runtime   *Runtime
	publisher Publisher
	cfg       SchedulerConfig
	log       *logging.Logger
}

// NewScheduler creates a Scheduler. publisher may be nil.
func NewScheduler(rt *Runtime, publisher Publisher, cfg SchedulerConfig, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		runtime:   rt,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

type cronJob struct {
	name string
	spec string
	fn   func(context.Context)
}

// Start registers the jobs and starts the scheduler. Jobs use ctx for their
// Redis and database calls.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []cronJob{
		{"promote", s.cfg.PromoteSpec, s.promote},
		{"reap", s.cfg.ReapSpec, s.reap},
	}
	if s.publisher != nil && s.cfg.PublishSpec != "" {
		jobs = append(jobs, cronJob{"publish", s.cfg.PublishSpec, s.publish})
	}

	for _, j := range jobs {
		fn := j.fn
		if _, err := s.cron.AddFunc(j.spec, func() { fn(ctx) }); err != nil {
			return fmt.Errorf("schedule %s job (%q): %w", j.name, j.spec, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(jobs))
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) promote(ctx context.Context) {
	n, err := s.runtime.PromoteDue(ctx)
	if err != nil {
		s.log.Error("promote delayed runs", "error", err)
		return
	}
	if n > 0 {
		s.log.Debug("delayed runs promoted", "count", n)
	}
}

func (s *Scheduler) reap(ctx context.Context) {
	if _, err := s.runtime.ReapCrashed(ctx); err != nil {
		s.log.Error("reap crashed runs", "error", err)
	}
}

func (s *Scheduler) publish(ctx context.Context) {
	n, err := s.publisher.PublishDueJobOffers(ctx, time.Now())
	if err != nil {
		s.log.Error("publish due job offers", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("job offers published", "count", n)
	}
}
