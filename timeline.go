package timelinex

import (
	"io"
	"log/slog"
	"math"

	"github.com/comalice/timelinex/clock"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/realtime"
	"github.com/comalice/timelinex/stats"
)

// epsilon is the smallest step below zero used to rewind a looping
// timeline before its remainder tick.
const epsilon = 0x1p-52

// Mode tells a standalone timeline from a bound shadow.
type Mode int

const (
	ModeStandalone Mode = iota
	ModeShadow
)

func (m Mode) String() string {
	switch m {
	case ModeStandalone:
		return "standalone"
	case ModeShadow:
		return "shadow"
	default:
		return "unknown"
	}
}

// Timeline owns a clock, a frame scheduler and a group of tracks.
//
// A Timeline is confined to its scheduler's goroutine: create it anywhere,
// but call its methods from scheduler callbacks, from track callbacks, or
// through Scheduler.Post. Track callbacks may freely call back into the
// timeline.
type Timeline struct {
	TrackGroup

	name      string
	cfg       Config
	clock     clock.Clock
	sched     realtime.Scheduler
	log       *slog.Logger
	stats     stats.Sink
	publisher EventPublisher
	onError   func(error) bool
	hooks     Hooks

	currentTime      float64
	referenceTime    float64
	timeBeforePaused float64
	playing          bool
	fps              float64
	frametime        float64
	minFrametime     float64

	frame        realtime.FrameID
	framePending bool
	loopInited   bool
	timeoutSeq   int
	err          error
	disposed     bool

	sync syncState
}

// New validates cfg and builds a timeline.
func New(cfg Config, opts ...Option) (*Timeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ErrorPolicy == "" {
		cfg.ErrorPolicy = ErrorPolicyLog
	}

	tl := &Timeline{cfg: cfg}
	for _, opt := range opts {
		opt(tl)
	}

	if tl.log == nil {
		tl.log = logging.WithComponent(nil, "timeline")
	}
	if tl.name != "" {
		tl.log = tl.log.With("timeline", tl.name)
	}
	if tl.clock == nil {
		tl.clock = clock.Default()
	}
	if tl.sched == nil {
		tl.sched = realtime.Default()
	}
	if tl.stats == nil {
		if cfg.OpenStats {
			tl.stats = stats.NewLogSink(tl.log, 0)
		} else {
			tl.stats = stats.Nop{}
		}
	}

	if tl.cfg.AutoRelease && tl.cfg.Loop {
		tl.log.Warn("autoRelease is disabled for looping timelines")
		tl.cfg.AutoRelease = false
	}
	tl.minFrametime = 900 / tl.cfg.MaxFPS
	tl.referenceTime = tl.clock.Now()
	return tl, nil
}

// Name returns the label given by WithName.
func (tl *Timeline) Name() string { return tl.name }

// Config returns the effective configuration.
func (tl *Timeline) Config() Config { return tl.cfg }

// CurrentTime is the position in ms since the timeline began.
func (tl *Timeline) CurrentTime() float64 { return tl.currentTime }

// ReferenceTime is the clock reading that corresponds to position zero.
func (tl *Timeline) ReferenceTime() float64 { return tl.referenceTime }

// Duration is the timeline length, +Inf when endless.
func (tl *Timeline) Duration() float64 { return tl.cfg.Duration }

func (tl *Timeline) Loop() bool        { return tl.cfg.Loop }
func (tl *Timeline) AutoRelease() bool { return tl.cfg.AutoRelease }
func (tl *Timeline) Playing() bool     { return tl.playing }
func (tl *Timeline) FPS() float64      { return tl.fps }
func (tl *Timeline) Disposed() bool    { return tl.disposed }

// Frametime is the smoothed interval between autoticks, in ms.
func (tl *Timeline) Frametime() float64 { return tl.frametime }

// Err returns the error that halted the timeline, if any. Play clears it.
func (tl *Timeline) Err() error { return tl.err }

// GetTime returns the absolute clock time of the current position.
func (tl *Timeline) GetTime() float64 {
	return tl.referenceTime + tl.currentTime
}

// Play starts playback from position zero.
func (tl *Timeline) Play() error {
	if err := tl.controllable(); err != nil {
		return err
	}
	if tl.playing {
		tl.log.Warn("timeline is already playing, restarting")
		tl.stop()
	}
	tl.playing = true
	tl.err = nil
	tl.referenceTime = tl.clock.Now()
	tl.publish(EventPlayed, nil)
	tl.autoTick(0, false)
	return nil
}

// Pause freezes playback and remembers the position for Resume.
func (tl *Timeline) Pause() error {
	if err := tl.controllable(); err != nil {
		return err
	}
	tl.pause()
	tl.publish(EventPaused, nil)
	return nil
}

// Resume continues playback from where Pause left it.
func (tl *Timeline) Resume() error {
	if err := tl.controllable(); err != nil {
		return err
	}
	tl.pause()
	tl.seek(tl.timeBeforePaused)
	tl.playing = true
	tl.err = nil
	tl.publish(EventResumed, nil)
	tl.autoTick(0, false)
	return nil
}

// Stop halts playback. The position is kept; the next Play restarts from 0.
func (tl *Timeline) Stop() error {
	if err := tl.controllable(); err != nil {
		return err
	}
	tl.stop()
	tl.publish(EventStopped, nil)
	return nil
}

// Seek jumps to time. Tracks observe the jump on the next tick.
func (tl *Timeline) Seek(time float64) error {
	if err := tl.controllable(); err != nil {
		return err
	}
	tl.seek(time)
	return nil
}

// Tick runs one tick at the current position: track fan-out, shadow sync,
// then release. The returned error is the callback error that halted the
// timeline, if any.
func (tl *Timeline) Tick() error {
	if err := tl.controllable(); err != nil {
		return err
	}
	if !tl.runTick() {
		return tl.err
	}
	return nil
}

// UpdateMaxFPS changes the autotick cap.
func (tl *Timeline) UpdateMaxFPS(maxFPS float64) error {
	if math.IsNaN(maxFPS) || maxFPS <= 0 {
		return ErrInvalidFPS
	}
	tl.cfg.MaxFPS = maxFPS
	tl.minFrametime = 900 / maxFPS
	return nil
}

// Dispose stops the timeline, drops every track and shadow link and closes
// the stats sink. It is idempotent.
func (tl *Timeline) Dispose() error {
	if tl.disposed {
		return nil
	}
	tl.stop()
	tl.RemoveAll()
	tl.disposeSync()
	if c, ok := tl.stats.(io.Closer); ok {
		if err := c.Close(); err != nil {
			tl.log.Debug("close stats sink", "error", err)
		}
	}
	tl.disposed = true
	tl.publish(EventDisposed, nil)
	return nil
}

func (tl *Timeline) controllable() error {
	if tl.disposed {
		return ErrDisposed
	}
	if tl.sync.mode == ModeShadow {
		return ErrShadowControl
	}
	return nil
}

func (tl *Timeline) seek(time float64) {
	tl.currentTime = time
	tl.referenceTime = tl.clock.Now() - time
}

func (tl *Timeline) pause() {
	tl.playing = false
	tl.timeBeforePaused = tl.currentTime
	tl.cancelFrame()
}

func (tl *Timeline) stop() {
	tl.playing = false
	tl.cancelFrame()
}

func (tl *Timeline) requestFrame(fn func()) {
	tl.frame = tl.sched.RequestFrame(fn)
	tl.framePending = true
}

func (tl *Timeline) cancelFrame() {
	if tl.framePending {
		tl.sched.CancelFrame(tl.frame)
		tl.framePending = false
	}
}

// autoTick is the per-frame driver. hasLast is false on the first frame
// after Play or Resume.
func (tl *Timeline) autoTick(lastTimeNow float64, hasLast bool) {
	tl.framePending = false
	if !tl.playing {
		return
	}

	timeNow := tl.clock.Now()
	if hasLast {
		step := timeNow - lastTimeNow
		if step < tl.minFrametime {
			tl.requestFrame(func() { tl.autoTick(lastTimeNow, true) })
			return
		}
		decay := tl.cfg.RecordFPSDecay
		tl.frametime = tl.frametime*(1-decay) + step*decay
		if tl.frametime > 0 {
			tl.fps = 1000 / tl.frametime
		}
	}

	candidate := timeNow - tl.referenceTime
	if candidate-tl.currentTime > tl.cfg.MaxStep {
		// Long stall: advance by at most maxStep and rebase the reference.
		tl.seek(tl.currentTime + tl.cfg.MaxStep)
	} else {
		tl.currentTime = candidate
	}

	if tl.currentTime >= tl.cfg.Duration {
		if !tl.cfg.Loop {
			tl.playing = false
			tl.seek(tl.cfg.Duration)
			if tl.runTick() {
				tl.publish(EventEnded, nil)
			}
			return
		}
		if !tl.wrap() {
			return
		}
	} else if !tl.runTick() {
		return
	}

	if tl.playing && !tl.framePending {
		tl.requestFrame(func() { tl.autoTick(timeNow, true) })
	}
}

// wrap handles the loop boundary of a looping timeline. It returns false if
// a tick halted the timeline.
func (tl *Timeline) wrap() bool {
	overshoot := tl.currentTime

	tl.fireHook(tl.hooks.OnEnd)
	if !tl.loopInited {
		tl.loopInited = true
		tl.fireHook(tl.hooks.OnInit)
	}
	tl.fireHook(tl.hooks.OnStart)

	for _, t := range tl.tracks {
		t.revive()
	}
	tl.seek(-epsilon)
	if !tl.runTick() {
		return false
	}
	tl.seek(math.Mod(overshoot, tl.cfg.Duration))
	if !tl.runTick() {
		return false
	}
	tl.publish(EventLooped, nil)
	return true
}

func (tl *Timeline) fireHook(h func()) {
	if h != nil {
		h()
	}
}

// runTick performs one full tick and reports whether the timeline is still
// live afterwards.
func (tl *Timeline) runTick() bool {
	tl.stats.Begin()

	err := tl.TrackGroup.Tick(tl.currentTime)
	tl.syncShadows()
	if err == nil && tl.cfg.AutoRelease {
		tl.Release()
	}

	tl.stats.End(stats.Sample{
		Timeline:    tl.name,
		FPS:         tl.fps,
		Frametime:   tl.frametime,
		CurrentTime: tl.currentTime,
		Tracks:      tl.Len(),
		Failed:      err != nil,
	})

	if err != nil {
		return !tl.handleError(err)
	}
	return true
}

// handleError applies the error hook or policy. It returns true if the
// timeline halted.
func (tl *Timeline) handleError(err error) bool {
	if tl.onError != nil {
		if tl.onError(err) {
			tl.halt(err)
			return true
		}
		return false
	}
	switch tl.cfg.ErrorPolicy {
	case ErrorPolicyIgnore:
		return false
	case ErrorPolicyHalt:
		tl.halt(err)
		return true
	default:
		tl.log.Error("track callback failed", "error", err, "current_time", tl.currentTime)
		return false
	}
}

func (tl *Timeline) halt(err error) {
	tl.err = err
	tl.stop()
	tl.log.Warn("timeline halted", "error", err)
	tl.publish(EventHalted, err)
}
