// Package scheduler runs a task on a cron schedule in the site zone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sitekit/sitekit/internal/logger"
	"github.com/sitekit/sitekit/internal/logger/tag"
	"github.com/sitekit/sitekit/internal/watermark"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is the work triggered on every scheduled tick.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

// Run implements Job.
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

type Scheduler struct {
	job      Job
	name     string
	expr     string
	schedule cron.Schedule
	location *time.Location

	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	busy     atomic.Bool
	wg       sync.WaitGroup
}

// New parses expr (five-field cron or a descriptor such as @daily) and
// returns a Scheduler that runs job in loc.
func New(name, expr string, loc *time.Location, job Job) (*Scheduler, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		job:      job,
		name:     name,
		expr:     expr,
		schedule: schedule,
		location: loc,
		stopChan: make(chan struct{}),
	}, nil
}

// Next returns the first activation strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Start blocks, running the job at every activation until ctx is done, a
// termination signal arrives or Stop is called. In-flight runs are
// awaited before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-done:
			return
		case <-sig:
			s.Stop(ctx)
		case <-ctx.Done():
			s.Stop(ctx)
		}
	}()

	logger.Info(ctx, "Scheduler started",
		tag.Task(s.name),
		tag.Schedule(s.expr),
		tag.Time("next", s.Next(now())),
	)
	s.start(ctx)

	// Cancel in-flight runs so they stop at the next throttle pause.
	cancel()
	s.wg.Wait()
	return nil
}

func (s *Scheduler) start(ctx context.Context) {
	t := now().Truncate(time.Minute)
	timer := time.NewTimer(0)
	defer timer.Stop()

	s.running.Store(true)

	for {
		select {
		case <-timer.C:
			s.run(ctx, t)
			t = s.nextTick(t)
			timer.Reset(t.Sub(now()))

		case <-s.stopChan:
			return
		}
	}
}

// run starts the job if an activation falls on tick. A run that is still
// busy from a previous activation causes this one to be skipped.
func (s *Scheduler) run(ctx context.Context, tick time.Time) {
	next := s.schedule.Next(tick.Add(-time.Second).In(s.location))
	if next.After(tick) {
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		logger.Info(ctx, "Previous run still in progress, skipping", tag.Task(s.name), tag.Time("tick", tick))
		return
	}

	runID, err := uuid.NewV7()
	if err != nil {
		s.busy.Store(false)
		logger.Error(ctx, "Failed to generate run ID", tag.Error(err))
		return
	}
	runCtx := logger.WithValues(ctx, tag.RunID(runID.String()), tag.Task(s.name))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		logger.Info(runCtx, "Run started")
		err := s.job.Run(runCtx)
		switch {
		case err == nil:
			logger.Info(runCtx, "Run finished")
		case errors.Is(err, watermark.ErrLocked):
			logger.Info(runCtx, "Run skipped", tag.Reason("another run holds the lock"))
		case errors.Is(err, context.Canceled):
			logger.Info(runCtx, "Run cancelled")
		default:
			logger.Error(runCtx, "Run failed", tag.Error(err))
		}
	}()
}

func (*Scheduler) nextTick(now time.Time) time.Time {
	return now.Add(time.Minute).Truncate(time.Second * 60)
}

// Stop ends the scheduling loop. It is safe to call more than once.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.running.Swap(false) {
			logger.Info(ctx, "Scheduler stopped")
		}
	})
}

var (
	// fixedTime is the fixed time used for testing.
	fixedTime     time.Time
	fixedTimeLock sync.RWMutex
)

// setFixedTime sets the fixed time for testing.
func setFixedTime(t time.Time) {
	fixedTimeLock.Lock()
	defer fixedTimeLock.Unlock()

	fixedTime = t
}

// now returns the current time.
func now() time.Time {
	fixedTimeLock.RLock()
	defer fixedTimeLock.RUnlock()

	if fixedTime.IsZero() {
		return time.Now()
	}

	return fixedTime
}
