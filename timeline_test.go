package timelinex

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/testutil"
)

type eventLog struct {
	events []Event
}

func (l *eventLog) Publish(_ context.Context, e Event) error {
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) Close() error { return nil }

func (l *eventLog) types() []EventType {
	out := make([]EventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func newTestTimeline(t *testing.T, d *testutil.ManualDriver, cfg Config, opts ...Option) *Timeline {
	t.Helper()
	base := []Option{
		WithClock(d.Clock()),
		WithScheduler(d.Sched),
		WithLogger(logging.Discard()),
	}
	tl, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	return tl
}

func advance(d *testutil.ManualDriver, ms float64, frames int) {
	for i := 0; i < frames; i++ {
		d.Advance(ms)
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.Duration = math.NaN() },
		func(c *Config) { c.Duration = -1 },
		func(c *Config) { c.MaxStep = 0 },
		func(c *Config) { c.MaxFPS = -3 },
		func(c *Config) { c.RecordFPSDecay = 1.5 },
		func(c *Config) { c.ErrorPolicy = "explode" },
		func(c *Config) {
			c.Loop = true
			c.Duration = 0
		},
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "case %d", i)
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, "case %d", i)
	}

	zero := DefaultConfig()
	zero.Duration = 0
	assert.NoError(t, zero.Validate(), "a zero-length timeline is fine when it does not loop")
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte("duration: 2000\nloop: true\nerrorPolicy: halt\n"))
	require.NoError(t, err)
	assert.Equal(t, 2000.0, cfg.Duration)
	assert.True(t, cfg.Loop)
	assert.Equal(t, ErrorPolicyHalt, cfg.ErrorPolicy)
	assert.Equal(t, 1000.0, cfg.MaxStep, "omitted keys keep defaults")

	cfg, err = ParseConfig([]byte("duration: .inf\n"))
	require.NoError(t, err)
	assert.True(t, math.IsInf(cfg.Duration, 1))

	_, err = ParseConfig([]byte("maxStep: -1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_SnapshotRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Duration = 1500
	cfg.Loop = true
	cfg.AutoRelease = false
	cfg.ErrorPolicy = ErrorPolicyIgnore
	assert.Equal(t, cfg, ConfigFromSnapshot(cfg.Snapshot()))
}

func TestTimeline_LoopDisablesAutoRelease(t *testing.T) {
	d := testutil.NewManualDriver()
	cfg := DefaultConfig()
	cfg.Loop = true
	cfg.Duration = 1000
	tl := newTestTimeline(t, d, cfg)
	assert.False(t, tl.AutoRelease())
	assert.True(t, tl.Loop())
}

func TestTimeline_PlayAdvances(t *testing.T) {
	d := testutil.NewManualDriver()
	log := &eventLog{}
	tl := newTestTimeline(t, d, DefaultConfig(), WithPublisher(log), WithName("main"))

	require.NoError(t, tl.Play())
	assert.True(t, tl.Playing())
	assert.Equal(t, 0.0, tl.CurrentTime())

	advance(d, 100, 3)
	assert.Equal(t, 300.0, tl.CurrentTime())
	assert.InDelta(t, 87.5, tl.Frametime(), 1e-9)
	assert.InDelta(t, 1000/87.5, tl.FPS(), 1e-9)
	assert.Equal(t, tl.ReferenceTime()+tl.CurrentTime(), tl.GetTime())

	require.Len(t, log.events, 1)
	assert.Equal(t, EventPlayed, log.events[0].Type)
	assert.Equal(t, "main", log.events[0].Timeline)
}

func TestTimeline_PlayRestartsFromZero(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())

	require.NoError(t, tl.Play())
	advance(d, 100, 5)
	require.NoError(t, tl.Play())
	assert.Equal(t, 0.0, tl.CurrentTime())
	assert.Equal(t, 1, d.Sched.PendingFrames(), "restart leaves exactly one frame pending")
}

func TestTimeline_SeekWhilePlaying(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())
	r := testutil.NewRecorder()
	_, err := tl.AddTrack(TrackConfig{ID: "a", StartTime: 5000, OnStart: r.Hook("a", "start")})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	advance(d, 100, 1)
	require.NoError(t, tl.Seek(5000))
	assert.Equal(t, 0, r.Count("a:start"), "seek does not tick")

	advance(d, 100, 1)
	assert.Equal(t, 5100.0, tl.CurrentTime())
	assert.Equal(t, 1, r.Count("a:start"))
}

func TestTimeline_MaxStepClamp(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())

	require.NoError(t, tl.Play())
	advance(d, 100, 1)
	advance(d, 5000, 1)
	assert.Equal(t, 1100.0, tl.CurrentTime())

	advance(d, 100, 1)
	assert.Equal(t, 1200.0, tl.CurrentTime(), "reference was rebased by the clamp")
}

func TestTimeline_FPSCap(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())
	require.NoError(t, tl.UpdateMaxFPS(10))
	assert.ErrorIs(t, tl.UpdateMaxFPS(0), ErrInvalidFPS)
	assert.ErrorIs(t, tl.UpdateMaxFPS(math.NaN()), ErrInvalidFPS)

	require.NoError(t, tl.Play())
	advance(d, 50, 1)
	assert.Equal(t, 0.0, tl.CurrentTime(), "frame under the cap is skipped")
	assert.Equal(t, 0.0, tl.Frametime(), "skipped frames do not touch the average")

	advance(d, 50, 1)
	assert.Equal(t, 100.0, tl.CurrentTime())
	assert.InDelta(t, 50, tl.Frametime(), 1e-9)
}

func TestTimeline_PauseResume(t *testing.T) {
	d := testutil.NewManualDriver()
	log := &eventLog{}
	tl := newTestTimeline(t, d, DefaultConfig(), WithPublisher(log))

	require.NoError(t, tl.Play())
	advance(d, 100, 2)
	require.NoError(t, tl.Pause())
	assert.False(t, tl.Playing())
	assert.Equal(t, 0, d.Sched.PendingFrames())

	advance(d, 500, 1)
	assert.Equal(t, 200.0, tl.CurrentTime())

	require.NoError(t, tl.Resume())
	assert.Equal(t, 200.0, tl.CurrentTime())
	advance(d, 100, 1)
	assert.Equal(t, 300.0, tl.CurrentTime())

	assert.Equal(t, []EventType{EventPlayed, EventPaused, EventResumed}, log.types())
}

func TestTimeline_Stop(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())

	require.NoError(t, tl.Play())
	advance(d, 100, 2)
	require.NoError(t, tl.Stop())
	assert.False(t, tl.Playing())
	assert.Equal(t, 0, d.Sched.PendingFrames())

	advance(d, 100, 2)
	assert.Equal(t, 200.0, tl.CurrentTime())
}

func TestTimeline_StopFromCallbackFinishesTick(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())
	r := testutil.NewRecorder()

	_, err := tl.AddTrack(TrackConfig{ID: "stopper", StartTime: 200, OnStart: func() error {
		return tl.Stop()
	}})
	require.NoError(t, err)
	_, err = tl.AddTrack(TrackConfig{ID: "after", StartTime: 200, OnStart: r.Hook("after", "start")})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	advance(d, 100, 2)
	assert.False(t, tl.Playing())
	assert.Equal(t, 1, r.Count("after:start"), "the tick in progress runs to completion")
	assert.Equal(t, 0, d.Sched.PendingFrames())
}

func TestTimeline_NonLoopingEnd(t *testing.T) {
	d := testutil.NewManualDriver()
	log := &eventLog{}
	cfg := DefaultConfig()
	cfg.Duration = 1000
	tl := newTestTimeline(t, d, cfg, WithPublisher(log))
	r := testutil.NewRecorder()
	_, err := tl.AddTrack(TrackConfig{ID: "a", EndTime: Ms(1000), OnUpdate: r.Update("a"), OnEnd: r.Hook("a", "end")})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	advance(d, 400, 3)

	assert.False(t, tl.Playing())
	assert.Equal(t, 1000.0, tl.CurrentTime())
	u, err := r.LastUpdate("a")
	require.NoError(t, err)
	assert.Equal(t, testutil.Update{T: 1000, P: 1}, u)
	assert.Equal(t, 1, r.Count("a:end"))
	assert.Equal(t, 0, tl.Len(), "auto release dropped the finished track")
	assert.Contains(t, log.types(), EventEnded)
}

func TestTimeline_LoopReplaysFinishedTracks(t *testing.T) {
	d := testutil.NewManualDriver()
	cfg := DefaultConfig()
	cfg.Duration = 1000
	cfg.Loop = true
	r := testutil.NewRecorder()
	tl := newTestTimeline(t, d, cfg, WithHooks(Hooks{
		OnInit:  r.Func("tl:init"),
		OnStart: r.Func("tl:start"),
		OnEnd:   r.Func("tl:end"),
	}))
	_, err := tl.AddTrack(TrackConfig{
		ID:      "half",
		EndTime: Ms(500),
		OnStart: r.Hook("half", "start"),
		OnEnd:   r.Hook("half", "end"),
	})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	advance(d, 100, 19)

	assert.InDelta(t, 900, tl.CurrentTime(), 1e-9)
	assert.Equal(t, 2, r.Count("half:start"))
	assert.Equal(t, 2, r.Count("half:end"))
	assert.Equal(t, 1, r.Count("tl:init"))
	assert.Equal(t, 1, r.Count("tl:start"))
	assert.Equal(t, 1, r.Count("tl:end"))

	advance(d, 100, 1)
	assert.Equal(t, 1, r.Count("tl:init"), "top-level init fires on the first wrap only")
	assert.Equal(t, 2, r.Count("tl:end"))
	assert.Equal(t, 2, r.Count("tl:start"))
	assert.Equal(t, 3, r.Count("half:start"))
}

func TestTimeline_LoopFullSpanTrack(t *testing.T) {
	d := testutil.NewManualDriver()
	cfg := DefaultConfig()
	cfg.Duration = 1000
	cfg.Loop = true
	tl := newTestTimeline(t, d, cfg)
	r := testutil.NewRecorder()
	_, err := tl.AddTrack(TrackConfig{
		ID:       "full",
		EndTime:  Ms(1000),
		OnStart:  r.Hook("full", "start"),
		OnUpdate: r.Update("full"),
		OnEnd:    r.Hook("full", "end"),
	})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	advance(d, 250, 8)

	// Two complete cycles; the wrap at 2000 has already begun the third.
	assert.Equal(t, 2, r.Count("full:end"))
	assert.Equal(t, 3, r.Count("full:start"))
	for _, u := range r.Updates("full") {
		assert.GreaterOrEqual(t, u.T, 0.0)
		assert.LessOrEqual(t, u.T, 1000.0)
	}
}

func TestTimeline_LoopRemainder(t *testing.T) {
	d := testutil.NewManualDriver()
	cfg := DefaultConfig()
	cfg.Duration = 1000
	cfg.Loop = true
	tl := newTestTimeline(t, d, cfg)

	require.NoError(t, tl.Play())
	advance(d, 900, 1)
	advance(d, 300, 1)
	assert.InDelta(t, 200, tl.CurrentTime(), 1e-9)
	assert.True(t, tl.Playing())
}

func TestTimeline_ErrorPolicyLogIsolatesPerTick(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())
	r := testutil.NewRecorder()
	boom := errors.New("boom")

	_, err := tl.AddTrack(TrackConfig{ID: "bad", OnStart: r.Failing("bad", "start", boom)})
	require.NoError(t, err)
	_, err = tl.AddTrack(TrackConfig{ID: "good", OnStart: r.Hook("good", "start")})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	assert.Equal(t, 0, r.Count("good:start"), "the failing tick skips later tracks")
	assert.True(t, tl.Playing())

	advance(d, 16, 1)
	assert.Equal(t, 1, r.Count("good:start"), "the next tick runs normally")
	assert.NoError(t, tl.Err())
}

func TestTimeline_ErrorPolicyHalt(t *testing.T) {
	d := testutil.NewManualDriver()
	log := &eventLog{}
	cfg := DefaultConfig()
	cfg.ErrorPolicy = ErrorPolicyHalt
	tl := newTestTimeline(t, d, cfg, WithPublisher(log))
	boom := errors.New("boom")

	_, err := tl.AddTrack(TrackConfig{ID: "bad", StartTime: 100, OnStart: func() error { return boom }})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	advance(d, 100, 1)

	assert.False(t, tl.Playing())
	assert.ErrorIs(t, tl.Err(), boom)
	assert.Equal(t, 0, d.Sched.PendingFrames())
	assert.Equal(t, EventHalted, log.events[len(log.events)-1].Type)
	assert.ErrorIs(t, log.events[len(log.events)-1].Err, boom)

	require.NoError(t, tl.Seek(50))
	require.NoError(t, tl.Tick())
	require.NoError(t, tl.Seek(150))
	assert.ErrorIs(t, tl.Tick(), boom, "Tick surfaces the halting error")
}

func TestTimeline_ErrorPolicyIgnore(t *testing.T) {
	d := testutil.NewManualDriver()
	cfg := DefaultConfig()
	cfg.ErrorPolicy = ErrorPolicyIgnore
	tl := newTestTimeline(t, d, cfg)

	_, err := tl.AddTrack(TrackConfig{OnUpdate: func(_, _ float64) error { return errors.New("x") }})
	require.NoError(t, err)
	require.NoError(t, tl.Play())
	advance(d, 10, 3)
	assert.True(t, tl.Playing())
	assert.NoError(t, tl.Err())
}

func TestTimeline_OnErrorOverridesPolicy(t *testing.T) {
	d := testutil.NewManualDriver()
	var seen []error
	cfg := DefaultConfig()
	cfg.ErrorPolicy = ErrorPolicyHalt
	tl := newTestTimeline(t, d, cfg, WithOnError(func(err error) bool {
		seen = append(seen, err)
		return len(seen) >= 2
	}))

	_, err := tl.AddTrack(TrackConfig{ID: "p", OnUpdate: func(_, _ float64) error { panic("again") }})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	assert.True(t, tl.Playing(), "hook returned false")
	advance(d, 10, 1)
	assert.False(t, tl.Playing(), "hook returned true")
	require.Len(t, seen, 2)
	var ce *CallbackError
	require.ErrorAs(t, seen[0], &ce)
	assert.Equal(t, "p", ce.TrackID)
}

func TestTimeline_Timers(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())
	r := testutil.NewRecorder()

	tl.SetTimeout(r.Func("once"), 250)
	cleared := tl.SetTimeout(r.Func("never"), 150)
	interval := tl.SetInterval(r.Func("tick"), 100)
	tl.ClearTimeout(cleared)
	tl.ClearTimeout(9999)

	require.NoError(t, tl.Play())
	advance(d, 100, 5)
	assert.Equal(t, 1, r.Count("once"))
	assert.Equal(t, 0, r.Count("never"))
	assert.Equal(t, 5, r.Count("tick"))

	require.NoError(t, tl.Pause())
	advance(d, 100, 5)
	assert.Equal(t, 5, r.Count("tick"), "timers follow timeline time")

	require.NoError(t, tl.Resume())
	tl.ClearInterval(interval)
	advance(d, 100, 3)
	assert.Equal(t, 5, r.Count("tick"))
	assert.Empty(t, tl.GetTracksByID(timerID(interval)))
}

func TestTimeline_TimeoutZeroFiresNextTick(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig())
	r := testutil.NewRecorder()

	require.NoError(t, tl.Play())
	advance(d, 100, 1)
	tl.SetTimeout(r.Func("now"), 0)
	assert.Equal(t, 0, r.Count("now"))
	advance(d, 16, 1)
	assert.Equal(t, 1, r.Count("now"))
	advance(d, 16, 3)
	assert.Equal(t, 1, r.Count("now"))
}

func TestTimeline_Dispose(t *testing.T) {
	d := testutil.NewManualDriver()
	log := &eventLog{}
	tl := newTestTimeline(t, d, DefaultConfig(), WithPublisher(log))
	_, err := tl.AddTrack(TrackConfig{})
	require.NoError(t, err)
	require.NoError(t, tl.Play())

	require.NoError(t, tl.Dispose())
	require.NoError(t, tl.Dispose())
	assert.True(t, tl.Disposed())
	assert.Equal(t, 0, tl.Len())
	assert.Equal(t, 0, d.Sched.PendingFrames())

	assert.ErrorIs(t, tl.Play(), ErrDisposed)
	assert.ErrorIs(t, tl.Seek(1), ErrDisposed)
	assert.ErrorIs(t, tl.Tick(), ErrDisposed)
	assert.Equal(t, 1, countType(log.types(), EventDisposed))
}

func TestTimeline_Snapshot(t *testing.T) {
	d := testutil.NewManualDriver()
	tl := newTestTimeline(t, d, DefaultConfig(), WithName("snap"))
	_, err := tl.AddTrack(TrackConfig{ID: "a", StartTime: 100, Duration: Ms(100)})
	require.NoError(t, err)

	require.NoError(t, tl.Play())
	advance(d, 150, 1)

	s := tl.Snapshot()
	assert.Equal(t, "snap", s.Name)
	assert.Equal(t, "standalone", s.Mode)
	assert.True(t, s.Playing)
	assert.Equal(t, 150.0, float64(s.CurrentTime))
	require.Len(t, s.Tracks, 1)
	assert.Equal(t, "a", s.Tracks[0].ID)
	assert.True(t, s.Tracks[0].Running)
	assert.True(t, math.IsInf(float64(s.Config.Duration), 1))
}

func countType(types []EventType, want EventType) int {
	n := 0
	for _, ty := range types {
		if ty == want {
			n++
		}
	}
	return n
}
