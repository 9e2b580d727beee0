// Package iarchiver submits newly published timeline items to the Internet
// Archive and remembers when it last did so.
package iarchiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sitekit/sitekit/internal/content"
	"github.com/sitekit/sitekit/internal/logger"
	"github.com/sitekit/sitekit/internal/logger/tag"
)

// Name is the task and sub-command name.
const Name = "iarchiver"

// DefaultThrottle is the pause after every processed item. Shorter pauses
// are not accepted.
const DefaultThrottle = 4 * time.Second

const (
	msgBegin   = "Beginning submission of archive requests. This can take some time...."
	msgSent    = "Archival requests sent to the Internet Archive."
	msgNothing = "Nothing new to archive"
)

// epoch is the watermark assumed when none can be read.
var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// WatermarkStore persists the start time of the previous run.
type WatermarkStore interface {
	Path() string
	Load(ctx context.Context) (time.Time, error)
	Save(ctx context.Context, t time.Time) error
	Lock(ctx context.Context) (func(), error)
}

// Source lists the site timeline. It is called once per run.
type Source interface {
	Scan(ctx context.Context) ([]*content.Post, error)
}

// Submitter issues one archival request for an absolute permalink.
type Submitter interface {
	Submit(ctx context.Context, permalink string) error
}

// Recorder receives per-run counters. All methods must be safe to call
// from the task goroutine.
type Recorder interface {
	ItemConsidered()
	RequestSent()
	RequestFailed()
	RunCompleted(start time.Time)
}

// Task is the archive submission task.
type Task struct {
	store     WatermarkStore
	source    Source
	submitter Submitter
	location  *time.Location
	throttle  time.Duration
	recorder  Recorder
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Task.
type Option func(*Task)

// WithLocation sets the site zone used to compare dates. Nil means UTC.
func WithLocation(loc *time.Location) Option {
	return func(t *Task) {
		if loc != nil {
			t.location = loc
		}
	}
}

// WithThrottle sets the pause after every processed item. Values below
// DefaultThrottle are raised to it.
func WithThrottle(d time.Duration) Option {
	return func(t *Task) {
		t.throttle = max(d, DefaultThrottle)
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(t *Task) {
		t.recorder = r
	}
}

// WithClock overrides the source of the run start time.
func WithClock(now func() time.Time) Option {
	return func(t *Task) {
		t.now = now
	}
}

// WithSleeper overrides how the throttle pause is taken.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Task) {
		t.sleep = sleep
	}
}

// New creates a Task.
func New(store WatermarkStore, source Source, submitter Submitter, opts ...Option) *Task {
	t := &Task{
		store:     store,
		source:    source,
		submitter: submitter,
		location:  time.UTC,
		throttle:  DefaultThrottle,
		recorder:  nopRecorder{},
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run performs one archival pass. Per-item failures are logged and
// skipped. Only a failure to persist the new watermark, a failed scan,
// lock contention or cancellation make Run return an error; on
// cancellation the watermark is left untouched.
func (t *Task) Run(ctx context.Context) error {
	unlock, err := t.store.Lock(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", Name, err)
	}
	defer unlock()

	since, firstRun := t.loadWatermark(ctx)
	since = localize(since, t.location)

	start := t.now().UTC().Truncate(time.Microsecond)

	posts, err := t.source.Scan(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to list content: %w", Name, err)
	}
	logger.Debug(ctx, "Selecting items to archive",
		tag.Time("since", since),
		tag.Count(len(posts)),
		tag.Duration(t.throttle),
	)
	logger.Info(ctx, msgBegin)

	var sent bool
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.recorder.ItemConsidered()

		if !t.include(post, since, firstRun) {
			continue
		}

		permalink := post.Permalink(true)
		if err := t.submitter.Submit(ctx, permalink); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			t.recorder.RequestFailed()
			logger.Warn(ctx, "Archival request failed", tag.Permalink(permalink), tag.Error(err))
		} else {
			t.recorder.RequestSent()
			logger.Info(ctx, "Archival request sent", tag.Permalink(permalink))
		}

		if err := t.sleep(ctx, t.throttle); err != nil {
			return err
		}
		sent = true
	}

	if err := t.store.Save(ctx, start); err != nil {
		return fmt.Errorf("%s: failed to save watermark: %w", Name, err)
	}
	t.recorder.RunCompleted(start)

	if sent {
		logger.Notice(ctx, msgSent)
	} else {
		logger.Notice(ctx, msgNothing)
	}
	return nil
}

// loadWatermark returns the previous run start, or the epoch and true when
// the file is missing or cannot be parsed.
func (t *Task) loadWatermark(ctx context.Context) (time.Time, bool) {
	wm, err := t.store.Load(ctx)
	if err != nil {
		logger.Debug(ctx, "No usable watermark, archiving every item",
			tag.File(t.store.Path()),
			tag.Error(err),
		)
		return epoch, true
	}
	return wm, false
}

// localize reads the wall clock of ts as if it were in loc, truncated to
// microseconds.
func localize(ts time.Time, loc *time.Location) time.Time {
	return time.Date(
		ts.Year(), ts.Month(), ts.Day(),
		ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(),
		loc,
	).Truncate(time.Microsecond)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) ItemConsidered()        {}
func (nopRecorder) RequestSent()           {}
func (nopRecorder) RequestFailed()         {}
func (nopRecorder) RunCompleted(time.Time) {}
