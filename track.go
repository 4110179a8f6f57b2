package timelinex

import (
	"fmt"
	"math"

	"github.com/comalice/timelinex/internal/logging"
)

// Hook is a lifecycle callback. A non-nil error aborts the rest of the
// current tick.
type Hook func() error

// UpdateFunc receives the track-local time and the (eased) percent.
type UpdateFunc func(t, p float64) error

// Easing maps linear percent in [0,1] to eased percent. It should be
// monotonic with easing(0)=0 and easing(1)=1.
type Easing func(p float64) float64

// Ticker is the capability shared by Track and TrackGroup: advance to a
// point on the timeline.
type Ticker interface {
	Tick(time float64) error
}

// TrackConfig describes a track. Supply at most one of EndTime and Duration;
// if both are set EndTime wins, if neither is set the track never ends.
type TrackConfig struct {
	ID        string
	Loop      bool
	StartTime float64
	EndTime   *float64
	Duration  *float64

	OnInit   Hook
	OnStart  Hook
	OnUpdate UpdateFunc
	OnEnd    Hook
	Easing   Easing
}

// Ms returns a pointer to v, for TrackConfig.EndTime and TrackConfig.Duration.
func Ms(v float64) *float64 { return &v }

// Track is a single timed interval on a timeline.
//
// State flags follow this progression:
//
//	pre-init ──init──► inited ──start──► started+running ──end──► started
//	    ▲                                     │                      │
//	    └───────────── reset (backward seek) ─┴──────────────────────┘
//
// A non-looping track retires itself (Alive becomes false) after its one
// full run.
type Track struct {
	id   string
	loop bool

	startTime float64
	endTime   float64
	duration  float64
	easing    Easing

	onInit   Hook
	onStart  Hook
	onUpdate UpdateFunc
	onEnd    Hook

	alive     bool
	retired   bool // alive=false set by the track itself, not by Kill
	inited    bool
	started   bool
	running   bool
	iteration int

	// parent is a structural back-reference; the group owns the track.
	parent *TrackGroup
}

// NewTrack validates cfg and builds a track.
func NewTrack(cfg TrackConfig) (*Track, error) {
	if math.IsNaN(cfg.StartTime) {
		return nil, &ConstructionError{Field: "startTime", Reason: "is NaN"}
	}
	if cfg.Duration != nil && math.IsNaN(*cfg.Duration) {
		return nil, &ConstructionError{Field: "duration", Reason: "is NaN"}
	}
	if cfg.EndTime != nil && math.IsNaN(*cfg.EndTime) {
		return nil, &ConstructionError{Field: "endTime", Reason: "is NaN"}
	}
	if cfg.StartTime < 0 {
		return nil, &ConstructionError{Field: "startTime", Reason: "is negative"}
	}

	duration := math.Inf(1)
	switch {
	case cfg.EndTime != nil && cfg.Duration != nil:
		logging.WithComponent(nil, "track").Warn("both duration and endTime are provided, duration is ignored",
			"id", cfg.ID)
		duration = *cfg.EndTime - cfg.StartTime
	case cfg.EndTime != nil:
		duration = *cfg.EndTime - cfg.StartTime
	case cfg.Duration != nil:
		duration = *cfg.Duration
	}
	if duration < 0 {
		return nil, &ConstructionError{Field: "duration", Reason: "can not be negative"}
	}

	if cfg.Easing != nil && (cfg.Easing(0) != 0 || cfg.Easing(1) != 1) {
		logging.WithComponent(nil, "track").Warn("easing should map 0 to 0 and 1 to 1", "id", cfg.ID)
	}

	return &Track{
		id:        cfg.ID,
		loop:      cfg.Loop,
		startTime: cfg.StartTime,
		endTime:   cfg.StartTime + duration,
		duration:  duration,
		easing:    cfg.Easing,
		onInit:    cfg.OnInit,
		onStart:   cfg.OnStart,
		onUpdate:  cfg.OnUpdate,
		onEnd:     cfg.OnEnd,
		alive:     true,
	}, nil
}

// ID returns the lookup tag. Ids are not unique.
func (t *Track) ID() string { return t.id }

// Loop reports whether the track repeats.
func (t *Track) Loop() bool { return t.loop }

// StartTime is when the track starts on its parent's time axis.
func (t *Track) StartTime() float64 { return t.startTime }

// EndTime is StartTime + Duration.
func (t *Track) EndTime() float64 { return t.endTime }

// Duration is the length of one run (one cycle for looping tracks).
func (t *Track) Duration() float64 { return t.duration }

func (t *Track) Alive() bool { return t.alive }
func (t *Track) Inited() bool { return t.inited }
func (t *Track) Started() bool { return t.started }
func (t *Track) Running() bool { return t.running }
func (t *Track) Iteration() int { return t.iteration }
func (t *Track) Parent() *TrackGroup { return t.parent }

// Expired reports a track that has run and ended: it will not fire again
// without a backward seek.
func (t *Track) Expired() bool {
	return t.started && !t.running
}

// Kill stops the track immediately and marks it for release.
func (t *Track) Kill() {
	t.alive = false
	t.retired = false
}

// SetStartTime moves the track, keeping its duration.
func (t *Track) SetStartTime(v float64) error {
	if t.started {
		return ErrMutationAfterStart
	}
	if math.IsNaN(v) {
		return &ConstructionError{Field: "startTime", Reason: "is NaN"}
	}
	if v < 0 {
		return &ConstructionError{Field: "startTime", Reason: "is negative"}
	}
	t.startTime = v
	t.endTime = v + t.duration
	return nil
}

// SetEndTime changes the end, and with it the duration.
func (t *Track) SetEndTime(v float64) error {
	if t.started {
		return ErrMutationAfterStart
	}
	if math.IsNaN(v) {
		return &ConstructionError{Field: "endTime", Reason: "is NaN"}
	}
	if v < t.startTime {
		return &ConstructionError{Field: "duration", Reason: "can not be negative"}
	}
	t.endTime = v
	t.duration = v - t.startTime
	return nil
}

// SetDuration changes the duration, and with it the end.
func (t *Track) SetDuration(v float64) error {
	if t.started {
		return ErrMutationAfterStart
	}
	if math.IsNaN(v) {
		return &ConstructionError{Field: "duration", Reason: "is NaN"}
	}
	if v < 0 {
		return &ConstructionError{Field: "duration", Reason: "can not be negative"}
	}
	t.duration = v
	t.endTime = t.startTime + v
	return nil
}

// Tick advances the track to time on its parent's axis.
func (t *Track) Tick(time float64) error {
	if !t.alive {
		return nil
	}
	if !t.inited {
		if err := t.init(); err != nil {
			return err
		}
	}
	if t.loop {
		return t.tickLoop(time)
	}
	return t.tickOnce(time)
}

func (t *Track) tickOnce(time float64) error {
	switch {
	case time < t.startTime:
		// Backward jump from a point where the track had already started.
		if t.started {
			return t.reset()
		}
		return nil

	case time >= t.endTime:
		var err error
		if !t.started {
			// The whole window was skipped; fire it once anyway.
			err = t.startAndEnd()
		} else if t.running {
			err = t.end()
		}
		t.retire()
		return err

	default:
		if t.running {
			return t.update(time)
		}
		if t.started {
			if err := t.reset(); err != nil {
				return err
			}
		}
		return t.start(time)
	}
}

func (t *Track) tickLoop(time float64) error {
	cycle, local := t.cycleAt(time)

	if time < t.startTime {
		t.iteration = cycle
		if t.started {
			return t.reset()
		}
		return nil
	}

	if !t.started {
		t.iteration = cycle
		return t.start(local)
	}
	if t.iteration == cycle {
		return t.update(local)
	}
	// Any number of elapsed cycles collapses into one end/start pair.
	t.iteration = cycle
	return t.changeCycle(local)
}

// cycleAt maps time to a loop cycle and a local time in [start, end).
func (t *Track) cycleAt(time float64) (int, float64) {
	if math.IsInf(t.duration, 1) {
		return 0, time
	}
	if t.duration == 0 {
		return 0, t.startTime
	}
	c := math.Floor((time - t.startTime) / t.duration)
	return int(c), time - t.duration*c
}

func (t *Track) percent(local float64) float64 {
	var p float64
	switch {
	case math.IsInf(t.duration, 1):
		p = 0
	case t.duration == 0:
		p = 1
	default:
		p = (local - t.startTime) / t.duration
	}
	if t.easing != nil {
		p = t.easing(p)
	}
	return p
}

// --- state actions ---

func (t *Track) init() error {
	t.inited = true
	return t.fire(PhaseInit, t.onInit)
}

func (t *Track) start(local float64) error {
	t.started = true
	t.running = true
	if err := t.fire(PhaseStart, t.onStart); err != nil {
		return err
	}
	return t.update(local)
}

func (t *Track) end() error {
	t.running = false
	if err := t.updateTo(t.endTime, 1); err != nil {
		return err
	}
	return t.fire(PhaseEnd, t.onEnd)
}

func (t *Track) startAndEnd() error {
	t.started = true
	t.running = false
	if err := t.fire(PhaseStart, t.onStart); err != nil {
		return err
	}
	if err := t.updateTo(t.endTime, 1); err != nil {
		return err
	}
	return t.fire(PhaseEnd, t.onEnd)
}

func (t *Track) changeCycle(local float64) error {
	if err := t.fire(PhaseEnd, t.onEnd); err != nil {
		return err
	}
	if err := t.fire(PhaseStart, t.onStart); err != nil {
		return err
	}
	return t.update(local)
}

// reset ends a running track at once and returns it to the inited state.
func (t *Track) reset() error {
	wasRunning := t.running
	t.inited = false
	t.started = false
	t.running = false

	if wasRunning {
		if err := t.updateTo(t.endTime, 1); err != nil {
			return err
		}
		if err := t.fire(PhaseEnd, t.onEnd); err != nil {
			return err
		}
	}
	return t.init()
}

func (t *Track) retire() {
	t.alive = false
	t.retired = true
}

// revive undoes retire so a looping timeline can run the track again.
// Killed tracks stay dead.
func (t *Track) revive() {
	if t.retired {
		t.alive = true
		t.retired = false
	}
}

func (t *Track) update(local float64) error {
	return t.updateTo(local, t.percent(local))
}

func (t *Track) updateTo(local, p float64) error {
	if t.onUpdate == nil {
		return nil
	}
	return t.call(PhaseUpdate, func() error { return t.onUpdate(local, p) })
}

func (t *Track) fire(phase Phase, h Hook) error {
	if h == nil {
		return nil
	}
	return t.call(phase, h)
}

// call runs a user callback, wrapping both returned errors and panics.
func (t *Track) call(phase Phase, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{TrackID: t.id, Phase: phase, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if cerr := fn(); cerr != nil {
		return &CallbackError{TrackID: t.id, Phase: phase, Err: cerr}
	}
	return nil
}
