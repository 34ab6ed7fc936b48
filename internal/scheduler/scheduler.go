// Package scheduler runs pipeline jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"TrendScout/internal/logger"
)

// Job is one unit of scheduled work. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron   *cron.Cron
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler using six-field (seconds-first) cron specs. An
// empty timezone means the local zone.
func New(ctx context.Context, timezone string, log *logger.Logger) (*Scheduler, error) {
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		loc = l
	}

	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Register adds a named job. Overlapping runs of the same job are skipped.
func (s *Scheduler) Register(spec, name string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	s.log.Info("task registered", logger.String("task", name), logger.String("cron", spec))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow executes a job immediately on the calling goroutine.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

// Next reports when each registered job fires next. Times are zero until Start.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

func (s *Scheduler) run(name string, job Job) error {
	start := time.Now()
	s.log.Info("running task", logger.String("task", name))
	err := job(s.ctx)
	if err != nil {
		s.log.Error("task failed",
			logger.String("task", name),
			logger.Duration("took_ms", time.Since(start)),
			logger.Error(err),
		)
		return err
	}
	s.log.Info("task finished", logger.String("task", name), logger.Duration("took_ms", time.Since(start)))
	return nil
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, append(pairs(keysAndValues), logger.Error(err))...)
}

func pairs(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
