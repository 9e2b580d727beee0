package iarchiver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/sitekit/sitekit/internal/content"
	"github.com/sitekit/sitekit/internal/logger"
	"github.com/sitekit/sitekit/internal/watermark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runStart = time.Date(2024, 7, 1, 9, 30, 15, 123456789, time.UTC)

type fakeSource struct {
	posts []*content.Post
	err   error
	calls int
}

func (s *fakeSource) Scan(context.Context) ([]*content.Post, error) {
	s.calls++
	return s.posts, s.err
}

type fakeSubmitter struct {
	fail      map[string]error
	submitted []string
}

func (s *fakeSubmitter) Submit(_ context.Context, permalink string) error {
	s.submitted = append(s.submitted, permalink)
	if err, ok := s.fail[permalink]; ok {
		return err
	}
	return nil
}

type fakeSleeper struct {
	pauses []time.Duration
}

func (s *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	s.pauses = append(s.pauses, d)
	return nil
}

type failingStore struct {
	*watermark.Store
	saveErr error
}

func (s *failingStore) Save(context.Context, time.Time) error {
	return s.saveErr
}

type countingRecorder struct {
	considered, sent, failed int
	completed                time.Time
}

func (r *countingRecorder) ItemConsidered()              { r.considered++ }
func (r *countingRecorder) RequestSent()                 { r.sent++ }
func (r *countingRecorder) RequestFailed()               { r.failed++ }
func (r *countingRecorder) RunCompleted(start time.Time) { r.completed = start }

func post(link string, date time.Time) *content.Post {
	return &content.Post{Slug: filepath.Base(link), Link: link, Date: date}
}

type fixture struct {
	dir       string
	store     *watermark.Store
	source    *fakeSource
	submitter *fakeSubmitter
	sleeper   *fakeSleeper
	logs      *bytes.Buffer
	ctx       context.Context
}

func newFixture(t *testing.T, posts ...*content.Post) *fixture {
	t.Helper()
	dir := t.TempDir()
	logs := &bytes.Buffer{}
	lg := logger.NewLogger(logger.WithWriter(logs), logger.WithQuiet(), logger.WithDebug())
	return &fixture{
		dir:       dir,
		store:     watermark.New(dir),
		source:    &fakeSource{posts: posts},
		submitter: &fakeSubmitter{fail: map[string]error{}},
		sleeper:   &fakeSleeper{},
		logs:      logs,
		ctx:       logger.WithLogger(context.Background(), lg),
	}
}

func (f *fixture) writeWatermark(t *testing.T, value string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, watermark.FileName), []byte(value), 0o600))
}

func (f *fixture) readWatermark(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, watermark.FileName))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) task(opts ...Option) *Task {
	base := []Option{
		WithClock(func() time.Time { return runStart }),
		WithSleeper(f.sleeper.sleep),
	}
	return New(f.store, f.source, f.submitter, append(base, opts...)...)
}

func TestRun_FirstRunSubmitsEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		post("https://example.com/c/", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)),
		post("https://example.com/b/", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)),
		post("https://example.com/a/", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)),
	)

	require.NoError(t, f.task().Run(f.ctx))

	assert.Equal(t, []string{
		"https://example.com/c/",
		"https://example.com/b/",
		"https://example.com/a/",
	}, f.submitter.submitted)
	assert.Equal(t, "2024-07-01T09:30:15.123456", f.readWatermark(t))
	assert.Contains(t, f.logs.String(), "No usable watermark")
	assert.Contains(t, f.logs.String(), msgSent)
}

func TestRun_Scenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		post("https://example.com/c/", time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)),
		post("https://example.com/b/", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		post("https://example.com/a/", time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC)),
	)
	f.writeWatermark(t, "2020-01-01T00:00:00.000000")

	require.NoError(t, f.task().Run(f.ctx))

	assert.Equal(t, []string{"https://example.com/c/", "https://example.com/b/"}, f.submitter.submitted)
	assert.Len(t, f.sleeper.pauses, 2)
	assert.Equal(t, "2024-07-01T09:30:15.123456", f.readWatermark(t))

	logs := f.logs.String()
	assert.Regexp(t, `level=INFO .*msg="`+regexp.QuoteMeta(msgBegin)+`"`, logs)
	assert.Contains(t, logs, msgSent)
	assert.NotContains(t, logs, "No usable watermark")
}

func TestRun_Inclusion(t *testing.T) {
	t.Parallel()

	wm := time.Date(2023, 3, 3, 12, 0, 0, 500000000, time.UTC)

	tests := []struct {
		name     string
		date     time.Time
		included bool
	}{
		{name: "EqualToWatermark", date: wm, included: true},
		{name: "OneMicrosecondLater", date: wm.Add(time.Microsecond), included: true},
		{name: "OneMicrosecondEarlier", date: wm.Add(-time.Microsecond), included: false},
		{name: "SubMicrosecondEarlier", date: wm.Add(-1), included: false},
		{name: "SubMicrosecondLaterTruncatesToEqual", date: wm.Add(999), included: true},
		{name: "MuchEarlier", date: wm.AddDate(-1, 0, 0), included: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, post("https://example.com/x/", tt.date))
			f.writeWatermark(t, watermark.Format(wm))

			require.NoError(t, f.task().Run(f.ctx))

			if tt.included {
				assert.Len(t, f.submitter.submitted, 1)
			} else {
				assert.Empty(t, f.submitter.submitted)
			}
		})
	}
}

func TestRun_NothingNewStillAdvancesWatermark(t *testing.T) {
	t.Parallel()

	f := newFixture(t, post("https://example.com/old/", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	f.writeWatermark(t, "2020-01-01T00:00:00.000000")
	rec := &countingRecorder{}

	require.NoError(t, f.task(WithRecorder(rec)).Run(f.ctx))

	assert.Empty(t, f.submitter.submitted)
	assert.Empty(t, f.sleeper.pauses)
	assert.Equal(t, "2024-07-01T09:30:15.123456", f.readWatermark(t))
	assert.Contains(t, f.logs.String(), msgNothing)
	assert.NotContains(t, f.logs.String(), msgSent)
	assert.Equal(t, 1, rec.considered)
	assert.Equal(t, runStart.Truncate(time.Microsecond), rec.completed)
}

func TestRun_EmptyTimeline(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.task().Run(f.ctx))

	assert.Equal(t, "2024-07-01T09:30:15.123456", f.readWatermark(t))
	assert.Contains(t, f.logs.String(), msgNothing)
}

func TestRun_FailureIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		post("https://example.com/a/", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)),
		post("https://example.com/b/", time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)),
	)
	f.submitter.fail["https://example.com/a/"] = errors.New("connection reset")
	rec := &countingRecorder{}

	require.NoError(t, f.task(WithRecorder(rec)).Run(f.ctx))

	assert.Equal(t, []string{"https://example.com/a/", "https://example.com/b/"}, f.submitter.submitted)
	assert.Len(t, f.sleeper.pauses, 2)
	assert.Equal(t, 1, rec.sent)
	assert.Equal(t, 1, rec.failed)
	assert.Equal(t, "2024-07-01T09:30:15.123456", f.readWatermark(t))

	logs := f.logs.String()
	assert.Contains(t, logs, "Archival request failed")
	assert.Contains(t, logs, "connection reset")
	assert.Contains(t, logs, msgSent)
}

func TestRun_AllFailedStillReportsSent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, post("https://example.com/a/", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))
	f.submitter.fail["https://example.com/a/"] = errors.New("boom")

	require.NoError(t, f.task().Run(f.ctx))
	assert.Contains(t, f.logs.String(), msgSent)
}

func TestRun_ThrottleAfterEveryItem(t *testing.T) {
	t.Parallel()

	var posts []*content.Post
	for i := range 5 {
		posts = append(posts, post("https://example.com/p"+string(rune('a'+i))+"/", time.Date(2022, 1, i+1, 0, 0, 0, 0, time.UTC)))
	}
	f := newFixture(t, posts...)

	require.NoError(t, f.task().Run(f.ctx))

	require.Len(t, f.sleeper.pauses, 5)
	var total time.Duration
	for _, d := range f.sleeper.pauses {
		assert.Equal(t, 4*time.Second, d)
		total += d
	}
	assert.GreaterOrEqual(t, total, 5*4*time.Second)
}

func TestRun_CustomThrottle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, post("https://example.com/a/", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.task(WithThrottle(10*time.Second)).Run(f.ctx))
	assert.Equal(t, []time.Duration{10 * time.Second}, f.sleeper.pauses)
}

func TestRun_ThrottleBelowDefaultIsRaised(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{-time.Second, 0, time.Millisecond, time.Second} {
		t.Run(d.String(), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t,
				post("https://example.com/a/", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)),
				post("https://example.com/b/", time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)),
				post("https://example.com/c/", time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)),
			)
			require.NoError(t, f.task(WithThrottle(d)).Run(f.ctx))

			require.Len(t, f.sleeper.pauses, 3)
			for _, p := range f.sleeper.pauses {
				assert.Equal(t, DefaultThrottle, p)
			}
		})
	}
}

func TestRun_CorruptWatermark(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		post("https://example.com/a/", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)),
		post("https://example.com/b/", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
	)
	f.writeWatermark(t, "garbage")

	require.NoError(t, f.task().Run(f.ctx))

	assert.Len(t, f.submitter.submitted, 2)
	logs := f.logs.String()
	assert.Contains(t, logs, "level=DEBUG")
	assert.Contains(t, logs, "No usable watermark")
	assert.Contains(t, logs, watermark.FileName)
	assert.Equal(t, "2024-07-01T09:30:15.123456", f.readWatermark(t))
}

func TestRun_WatermarkWriteFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, post("https://example.com/a/", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))
	store := &failingStore{Store: f.store, saveErr: errors.New("disk full")}

	err := New(store, f.source, f.submitter,
		WithClock(func() time.Time { return runStart }),
		WithSleeper(f.sleeper.sleep),
	).Run(f.ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, f.submitter.submitted, 1)
	assert.NotContains(t, f.logs.String(), msgSent)
}

func TestRun_ScanFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.source.err = errors.New("permission denied")

	err := f.task().Run(f.ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	_, statErr := os.Stat(filepath.Join(f.dir, watermark.FileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_Locked(t *testing.T) {
	t.Parallel()

	f := newFixture(t, post("https://example.com/a/", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))
	unlock, err := watermark.New(f.dir).Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	err = f.task().Run(f.ctx)
	require.ErrorIs(t, err, watermark.ErrLocked)
	assert.Empty(t, f.submitter.submitted)
	assert.Zero(t, f.source.calls)
}

func TestRun_CancelledDuringThrottle(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		post("https://example.com/a/", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)),
		post("https://example.com/b/", time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)),
	)
	f.writeWatermark(t, "2020-01-01T00:00:00.000000")

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	sleeper := func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := f.task(WithSleeper(sleeper)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"https://example.com/a/"}, f.submitter.submitted)
	assert.Equal(t, "2020-01-01T00:00:00.000000", f.readWatermark(t))
}

func TestRun_ComparesWallClockInSiteZone(t *testing.T) {
	t.Parallel()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	f := newFixture(t,
		// 05:00 in Tokyo on the watermark day, which is still the previous day in UTC.
		post("https://example.com/morning/", time.Date(2024, 1, 1, 5, 0, 0, 0, tokyo)),
		post("https://example.com/eve/", time.Date(2023, 12, 31, 23, 0, 0, 0, tokyo)),
	)
	f.writeWatermark(t, "2024-01-01T00:00:00.000000")

	require.NoError(t, f.task(WithLocation(tokyo)).Run(f.ctx))

	assert.Equal(t, []string{"https://example.com/morning/"}, f.submitter.submitted)
	assert.Equal(t, "2024-07-01T09:30:15.123456", f.readWatermark(t))
}

func TestRun_RescansEveryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	task := f.task()
	require.NoError(t, task.Run(f.ctx))
	require.NoError(t, task.Run(f.ctx))
	assert.Equal(t, 2, f.source.calls)
}

func TestLocalize(t *testing.T) {
	t.Parallel()

	oslo, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)

	in := time.Date(2024, 2, 3, 4, 5, 6, 789123456, time.UTC)
	got := localize(in, oslo)

	assert.Equal(t, oslo, got.Location())
	assert.Equal(t, 4, got.Hour())
	assert.Equal(t, 789123000, got.Nanosecond())
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepContext(context.Background(), time.Millisecond))
	require.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		post("https://example.com/new/", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)),
		post("https://example.com/old/", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)),
	)
	f.writeWatermark(t, "2020-01-01T00:00:00.000000")

	plan, err := f.task().Plan(f.ctx)
	require.NoError(t, err)

	assert.False(t, plan.FirstRun)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), plan.Since)
	require.Len(t, plan.Items, 2)
	assert.True(t, plan.Items[0].Pending)
	assert.False(t, plan.Items[1].Pending)
	assert.Equal(t, 1, plan.PendingCount())

	assert.Empty(t, f.submitter.submitted)
	assert.Equal(t, "2020-01-01T00:00:00.000000", f.readWatermark(t))
}

func TestPlan_SiteZoneKeepsStoredWallClock(t *testing.T) {
	t.Parallel()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	f := newFixture(t, post("https://example.com/a/", time.Date(2024, 1, 1, 5, 0, 0, 0, tokyo)))
	f.writeWatermark(t, "2024-01-01T00:00:00.000000")

	plan, err := f.task(WithLocation(tokyo)).Plan(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01T00:00:00.000000", plan.Since.Format(watermark.Layout))
	assert.Equal(t, tokyo, plan.Since.Location())
	assert.Equal(t, 1, plan.PendingCount())
}

func TestPlan_FirstRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, post("https://example.com/a/", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)))

	plan, err := f.task().Plan(f.ctx)
	require.NoError(t, err)
	assert.True(t, plan.FirstRun)
	assert.Equal(t, 1, plan.PendingCount())

	_, statErr := os.Stat(filepath.Join(f.dir, watermark.FileName))
	assert.True(t, os.IsNotExist(statErr))
}
