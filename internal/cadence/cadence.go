// Package cadence runs a job on a cron schedule. Overlapping ticks are
// skipped while a previous run is still going.
package cadence

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/role-tracker/internal/logging"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron and manages the run loop.
type Scheduler struct {
	cron           *cron.Cron
	spec           string
	job            Job
	logger         *zap.Logger
	runImmediately bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// RunImmediately also runs the job once on Start, without waiting for the
// first tick.
func RunImmediately() Option {
	return func(s *Scheduler) { s.runImmediately = true }
}

// New creates a Scheduler for a standard five-field cron spec or a
// descriptor such as "@every 6h".
func New(spec string, job Job, opts ...Option) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s := &Scheduler{spec: spec, job: job, logger: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{s.logger.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s, nil
}

// Start registers the job and starts the scheduler. The job runs with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { _ = s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("schedule started", zap.String("spec", s.spec))

	if s.runImmediately {
		go func() { _ = s.RunOnce(ctx) }()
	}
	return nil
}

// Stop stops the scheduler and waits for a running job to finish or ctx to
// end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("schedule stopped")
}

// Next returns the time of the next scheduled run, or zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce runs the job now and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("scheduled run started")

	err := s.job(ctx)
	if err != nil {
		s.logger.Error("scheduled run failed",
			zap.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("scheduled run complete", zap.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()))
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
