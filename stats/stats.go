// Package stats records per-tick timeline performance.
//
// A Timeline calls Begin before each tick and End after it. Sinks measure
// the tick themselves; the Sample carries what only the timeline knows.
package stats

import (
	"log/slog"
	"sync"
	"time"
)

// Sample describes one completed tick.
type Sample struct {
	Timeline    string
	FPS         float64
	Frametime   float64 // smoothed ms between autoticks
	CurrentTime float64
	Tracks      int
	Failed      bool
}

// Sink receives tick measurements. Calls arrive from the timeline's
// goroutine; sinks shared between timelines must be safe for concurrent use.
type Sink interface {
	Begin()
	End(s Sample)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Begin()       {}
func (Nop) End(_ Sample) {}

// LogSink aggregates ticks and logs a summary once per interval.
type LogSink struct {
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	begin    time.Time
	since    time.Time
	ticks    int
	failures int
	busy     time.Duration
	last     Sample
}

// NewLogSink builds a LogSink. interval <= 0 means one second.
func NewLogSink(log *slog.Logger, interval time.Duration) *LogSink {
	if interval <= 0 {
		interval = time.Second
	}
	return &LogSink{log: log, interval: interval, now: time.Now}
}

func (s *LogSink) Begin() {
	s.mu.Lock()
	s.begin = s.now()
	if s.since.IsZero() {
		s.since = s.begin
	}
	s.mu.Unlock()
}

func (s *LogSink) End(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.now()
	s.ticks++
	s.busy += end.Sub(s.begin)
	if sample.Failed {
		s.failures++
	}
	s.last = sample

	if end.Sub(s.since) < s.interval {
		return
	}
	s.flush(end)
}

// flush logs and resets the window. Caller holds mu.
func (s *LogSink) flush(now time.Time) {
	if s.ticks == 0 {
		return
	}
	s.log.Info("timeline stats",
		"timeline", s.last.Timeline,
		"fps", s.last.FPS,
		"frametime_ms", s.last.Frametime,
		"current_time", s.last.CurrentTime,
		"tracks", s.last.Tracks,
		"ticks", s.ticks,
		"failures", s.failures,
		"avg_tick", s.busy/time.Duration(s.ticks),
	)
	s.since = now
	s.ticks = 0
	s.failures = 0
	s.busy = 0
}

// Close logs whatever is left in the current window.
func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush(s.now())
	return nil
}
