// Package batch drives one attendance submission per stored credential,
// strictly one at a time, with a fixed pause before each request.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/logger"
	"github.com/buckleypaul/rollcall/internal/outcome"
	"github.com/buckleypaul/rollcall/internal/store"
)

// DefaultPace is the pause before each request.
const DefaultPace = 1200 * time.Millisecond

var (
	// ErrNoTargetIdentifier rejects a run whose identifier is blank.
	ErrNoTargetIdentifier = errors.New("no attendance identifier set")
	// ErrRunInProgress rejects a run while another one is active.
	ErrRunInProgress = errors.New("a run is already in progress")
)

// Submitter sends one attendance request. *attendance.Client implements it.
type Submitter interface {
	Submit(ctx context.Context, target, sessionToken string) (json.RawMessage, error)
}

// Options configures a Runner.
type Options struct {
	Pace        time.Duration
	AutoExecute bool
	Logger      *zap.SugaredLogger

	// Sleep and Now are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Runner executes batch runs. At most one run is active at a time.
type Runner struct {
	sub         Submitter
	pace        atomic.Int64
	autoExecute atomic.Bool
	running     atomic.Bool
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	log         *zap.SugaredLogger
}

// NewRunner returns a Runner that submits through sub.
func NewRunner(sub Submitter, opts Options) *Runner {
	r := &Runner{
		sub:   sub,
		sleep: opts.Sleep,
		now:   opts.Now,
		log:   opts.Logger,
	}
	if opts.Pace <= 0 {
		opts.Pace = DefaultPace
	}
	r.pace.Store(int64(opts.Pace))
	r.autoExecute.Store(opts.AutoExecute)
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.log == nil {
		r.log = logger.ComponentLogger("batch")
	}
	return r
}

// Running reports whether a run is active.
func (r *Runner) Running() bool { return r.running.Load() }

// Pace returns the pause applied before each request.
func (r *Runner) Pace() time.Duration { return time.Duration(r.pace.Load()) }

// SetPace changes the pause for subsequent runs. Non-positive values are ignored.
func (r *Runner) SetPace(d time.Duration) {
	if d > 0 {
		r.pace.Store(int64(d))
	}
}

func (r *Runner) AutoExecute() bool { return r.autoExecute.Load() }

func (r *Runner) SetAutoExecute(on bool) { r.autoExecute.Store(on) }

// Run submits target once for every record, in order. Each record yields a
// pending entry followed by a success or failed entry; a failure never stops
// the run. A blank target or an active run is rejected before any event is
// emitted. emit is called from the goroutine running Run.
func (r *Runner) Run(ctx context.Context, target string, records []store.Credential, emit func(Event)) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return ErrNoTargetIdentifier
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	released := false
	defer func() {
		if !released {
			r.running.Store(false)
		}
	}()

	pace := r.Pace()
	started := r.now()
	finished := RunFinished{
		Target:      target,
		StartedAt:   started,
		Total:       len(records),
		ClearTarget: r.AutoExecute(),
	}

	r.log.Infow("batch run started",
		logger.FieldTarget, target,
		logger.FieldCount, len(records),
		"pace", pace)

	for _, rec := range records {
		emit(EntryAppended{Entry: outcome.Entry{
			Timestamp: r.now(),
			Subject:   rec.Name,
			Target:    target,
			Status:    outcome.StatusPending,
			Message: fmt.Sprintf("Marking attendance for %s (SID: %s)",
				rec.Name, attendance.TokenPreview(rec.SessionToken)),
		}})

		// A cancelled context cuts the pause short; the submit below then
		// fails on its own and the record is logged as failed.
		_ = r.sleep(ctx, pace)

		if _, err := r.sub.Submit(ctx, target, rec.SessionToken); err != nil {
			finished.Failed++
			emit(EntryAppended{Entry: outcome.Entry{
				Timestamp: r.now(),
				Subject:   rec.Name,
				Target:    target,
				Status:    outcome.StatusFailed,
				Message:   failureMessage(err),
			}})
			continue
		}

		finished.Succeeded++
		at := r.now()
		emit(EntryAppended{Entry: outcome.Entry{
			Timestamp: at,
			Subject:   rec.Name,
			Target:    target,
			Status:    outcome.StatusSuccess,
			Message:   "Attendance marked successfully",
		}})
		emit(RecordUsed{ID: rec.ID, At: at})
	}

	finished.Duration = r.now().Sub(started)
	r.log.Infow("batch run finished",
		logger.FieldTarget, target,
		"succeeded", finished.Succeeded,
		"failed", finished.Failed,
		logger.FieldDurationMS, finished.Duration.Milliseconds())

	// Idle before the final event so a shell reacting to it can start the
	// next run straight away.
	released = true
	r.running.Store(false)
	emit(finished)
	return nil
}

// Collect runs synchronously and returns every event in order.
func (r *Runner) Collect(ctx context.Context, target string, records []store.Credential) ([]Event, error) {
	var events []Event
	err := r.Run(ctx, target, records, func(ev Event) {
		events = append(events, ev)
	})
	return events, err
}

func failureMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Request failed"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
