// Package jobs runs the periodic maintenance work of the API on a cron
// schedule: purging expired codes and sessions, and snapshotting every
// collection to S3 as CSV.
package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/go-budget-api/internal/infrastructure/metrics"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
	"github.com/robfig/cron/v3"
)

const (
	jobSweep    = "sweep"
	jobSnapshot = "snapshot"
)

type sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type tableLister interface {
	Tables() []*rowstore.Table
}

type uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

type Deps struct {
	OTP      sweeper
	Sessions sweeper
	// OTPCollection and SessionCollection label the swept-rows metric.
	OTPCollection     string
	SessionCollection string

	Store    tableLister
	Uploader uploader // nil disables snapshots

	SweepSchedule    string
	SnapshotSchedule string // empty disables snapshots
	Clock            func() time.Time
	Timeout          time.Duration
}

// Runner owns the cron scheduler.
type Runner struct {
	deps Deps
	cron *cron.Cron
}

// NewRunner registers the configured jobs. Schedules use the standard
// five-field cron syntax or descriptors such as "@every 1h".
func NewRunner(deps Deps) (*Runner, error) {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 5 * time.Minute
	}
	r := &Runner{deps: deps, cron: cron.New()}

	if deps.SweepSchedule != "" {
		if _, err := r.cron.AddFunc(deps.SweepSchedule, r.wrap(jobSweep, r.Sweep)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", jobSweep, err)
		}
	}
	if deps.SnapshotSchedule != "" && deps.Uploader != nil {
		if _, err := r.cron.AddFunc(deps.SnapshotSchedule, r.wrap(jobSnapshot, r.Snapshot)); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", jobSnapshot, err)
		}
	}
	return r, nil
}

func (r *Runner) Start() { r.cron.Start() }

// Stop halts scheduling and returns a context that is done once running jobs
// have finished.
func (r *Runner) Stop() context.Context { return r.cron.Stop() }

// Jobs returns the number of scheduled jobs.
func (r *Runner) Jobs() int { return len(r.cron.Entries()) }

func (r *Runner) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.deps.Timeout)
		defer cancel()

		start := time.Now()
		err := run(ctx)
		metrics.RecordJobRun(name, time.Since(start), err == nil)
		if err != nil {
			slog.Warn("job failed", "job", name, "err", err)
		}
	}
}

// Sweep deletes expired codes and sessions.
func (r *Runner) Sweep(ctx context.Context) error {
	var errs []error
	for _, s := range []struct {
		collection string
		sweeper    sweeper
	}{
		{r.deps.OTPCollection, r.deps.OTP},
		{r.deps.SessionCollection, r.deps.Sessions},
	} {
		if s.sweeper == nil {
			continue
		}
		n, err := s.sweeper.Sweep(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", s.collection, err))
			continue
		}
		metrics.RecordSwept(s.collection, n)
		if n > 0 {
			slog.Info("swept expired rows", "collection", s.collection, "rows", n)
		}
	}
	return errors.Join(errs...)
}

// Snapshot uploads every open collection as <prefix>/<name>.csv, header row
// first. The prefix is the UTC run time.
func (r *Runner) Snapshot(ctx context.Context) error {
	if r.deps.Uploader == nil || r.deps.Store == nil {
		return nil
	}
	tables := r.deps.Store.Tables()
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name() < tables[j].Name() })

	prefix := "snapshots/" + r.deps.Clock().UTC().Format("20060102T150405Z")
	for _, t := range tables {
		data, err := tableCSV(ctx, t)
		if err != nil {
			return err
		}
		if _, err := r.deps.Uploader.Upload(ctx, prefix+"/"+t.Name()+".csv", bytes.NewReader(data), "text/csv"); err != nil {
			return fmt.Errorf("upload %s: %w", t.Name(), err)
		}
	}
	slog.Info("snapshot uploaded", "prefix", prefix, "collections", len(tables))
	return nil
}

func tableCSV(ctx context.Context, t *rowstore.Table) ([]byte, error) {
	rows, err := t.Rows(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header()); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row.Cells); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
