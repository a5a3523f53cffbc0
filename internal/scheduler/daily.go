// Package scheduler runs a job once a day at a fixed local time.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is the unit of work executed on every firing.
type Job func(ctx context.Context) error

// NextRun returns the next occurrence of hour:minute in now's location. A
// time equal to now counts as passed.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// Daily fires Job every day at hour:minute in loc.
type Daily struct {
	hour   int
	minute int
	loc    *time.Location
	job    Job
	logger *slog.Logger

	// runMu keeps a manual run from overlapping the timed one.
	runMu sync.Mutex

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewDaily(hour, minute int, loc *time.Location, job Job, logger *slog.Logger) *Daily {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Daily{
		hour:   hour,
		minute: minute,
		loc:    loc,
		job:    job,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}
}

// Start blocks, running the job at every daily occurrence until ctx is done.
// The next firing is recomputed after every run, so DST changes are honoured.
func (d *Daily) Start(ctx context.Context) error {
	for ctx.Err() == nil {
		now := d.now().In(d.loc)
		next := NextRun(now, d.hour, d.minute)
		d.logger.Info("next recurring run scheduled", "at", next.Format(time.RFC3339), "in", next.Sub(now).Round(time.Second).String())

		select {
		case <-ctx.Done():
		case <-d.after(next.Sub(now)):
			if err := d.RunNow(ctx); err != nil {
				d.logger.Error("scheduled run failed", "error", err)
			}
		}
	}

	d.logger.Info("scheduler stopping", "reason", ctx.Err())
	return ctx.Err()
}

// RunNow executes the job synchronously without touching the timer.
func (d *Daily) RunNow(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	start := d.now()
	err := d.job(ctx)
	d.logger.Info("recurring run finished", "duration", d.now().Sub(start).String(), "ok", err == nil)
	return err
}
