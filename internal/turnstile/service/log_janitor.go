package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// LogClearer is the one operation the janitor needs.
type LogClearer interface {
	ClearAllLogs(ctx context.Context) (int64, error)
}

// JanitorConfig holds the parameters for NewLogJanitor.
type JanitorConfig struct {
	// Schedule is a standard five-field cron expression, e.g. "0 3 * * *".
	// Empty disables the janitor.
	Schedule string

	// Location is the zone the schedule is read in.
	Location *time.Location

	// Timeout bounds one run.  Defaults to 1 minute.
	Timeout time.Duration
}

// LogJanitor bulk-clears every student's entrance log on a cron schedule.
// It is the only automatic deletion of logs.
type LogJanitor struct {
	clearer  LogClearer
	schedule string
	timeout  time.Duration
	logger   *log.Logger
	cron     *cron.Cron
}

// NewLogJanitor creates a janitor but does not start it.
func NewLogJanitor(c LogClearer, cfg JanitorConfig, logger *log.Logger) *LogJanitor {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &LogJanitor{
		clearer:  c,
		schedule: cfg.Schedule,
		timeout:  timeout,
		logger:   logger,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
	}
}

// Start registers the schedule and starts the cron runner.  A bad
// expression is reported instead of silently disabling the janitor.
func (j *LogJanitor) Start() error {
	if j.schedule == "" {
		j.logger.Printf("log janitor disabled (no schedule)")
		return nil
	}
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return fmt.Errorf("log janitor schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.logger.Printf("log janitor started (schedule=%q)", j.schedule)
	return nil
}

// Stop halts the schedule and waits for a running clear to finish.
func (j *LogJanitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *LogJanitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.RunOnce(ctx)
}

// RunOnce performs one clear immediately.
func (j *LogJanitor) RunOnce(ctx context.Context) {
	n, err := j.clearer.ClearAllLogs(ctx)
	if err != nil {
		j.logger.Printf("log janitor error: %v", err)
		return
	}
	j.logger.Printf("log janitor: cleared logs for %d students", n)
}
