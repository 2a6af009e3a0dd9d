// Package scheduler runs a job once a day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/digest/internal/logger"
)

var ErrInvalidTime = errors.New("time must be HH:MM")

// Daily fires a job every day at hour:minute in loc.
type Daily struct {
	hour, minute int
	loc          *time.Location
	log          *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewDaily parses at as HH:MM (24h clock).
func NewDaily(at string, loc *time.Location, log *slog.Logger) (*Daily, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTime, at)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{
		hour:   t.Hour(),
		minute: t.Minute(),
		loc:    loc,
		log:    logger.OrDiscard(log),
		now:    time.Now,
		after:  time.After,
	}, nil
}

// Next returns the first trigger strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is done, calling job at each trigger. A failing job is
// logged and the schedule continues.
func (d *Daily) Run(ctx context.Context, job func(context.Context) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := d.now()
		next := d.Next(now)
		d.log.Info("next run scheduled", "at", next.Format(time.RFC3339), "in", next.Sub(now).Round(time.Second))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.after(next.Sub(now)):
		}

		if err := job(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.log.Error("scheduled run failed", "error", err)
		}
	}
}
