package timelinex

import (
	"log/slog"

	"github.com/comalice/timelinex/clock"
	"github.com/comalice/timelinex/realtime"
	"github.com/comalice/timelinex/stats"
)

// Option configures a Timeline's collaborators.
type Option func(*Timeline)

// WithName labels the timeline in logs, events and snapshots.
func WithName(name string) Option {
	return func(tl *Timeline) {
		tl.name = name
	}
}

// WithClock injects the time source. Defaults to clock.Default().
func WithClock(c clock.Clock) Option {
	return func(tl *Timeline) {
		tl.clock = c
	}
}

// WithScheduler injects the frame primitive. Defaults to realtime.Default().
func WithScheduler(s realtime.Scheduler) Option {
	return func(tl *Timeline) {
		tl.sched = s
	}
}

// WithLogger injects the logger.
func WithLogger(l *slog.Logger) Option {
	return func(tl *Timeline) {
		tl.log = l
	}
}

// WithStats injects a stats sink. Without one, Config.OpenStats installs a
// logging sink.
func WithStats(s stats.Sink) Option {
	return func(tl *Timeline) {
		tl.stats = s
	}
}

// WithOnError installs an error hook that overrides Config.ErrorPolicy.
// Returning true halts the timeline.
func WithOnError(fn func(error) bool) Option {
	return func(tl *Timeline) {
		tl.onError = fn
	}
}

// WithPublisher sends lifecycle events to p.
func WithPublisher(p EventPublisher) Option {
	return func(tl *Timeline) {
		tl.publisher = p
	}
}

// WithHooks installs timeline-level loop callbacks.
func WithHooks(h Hooks) Option {
	return func(tl *Timeline) {
		tl.hooks = h
	}
}
