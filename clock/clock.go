// Package clock provides the monotonic millisecond counter that drives every
// Timeline.
//
// Native time sources are not contractually monotonic. A Monotonic clock
// samples a raw Source and only ever accumulates non-negative deltas, so the
// value returned by Now never decreases. It is meant for measuring intervals,
// not wall time.
//
// Tests inject a FakeSource to control time deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock is the interface the scheduler consumes.
type Clock interface {
	// Now returns milliseconds relative to an unspecified origin.
	Now() float64
}

// Source is a raw, possibly regressing, millisecond reading.
type Source interface {
	Now() float64
}

// Monotonic turns a Source into a non-decreasing counter.
type Monotonic struct {
	mu        sync.Mutex
	src       Source
	lastRaw   float64
	acc       float64
	decreases uint64
}

// NewMonotonic creates a clock over src. The first sample is taken
// immediately and the accumulator starts at zero.
func NewMonotonic(src Source) *Monotonic {
	return &Monotonic{
		src:     src,
		lastRaw: src.Now(),
	}
}

// Now returns the accumulated time. A raw sample lower than the previous one
// leaves the accumulator unchanged and bumps the decrease counter; the next
// call continues from the new raw sample.
func (c *Monotonic) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw := c.src.Now()
	delta := raw - c.lastRaw
	c.lastRaw = raw

	if delta >= 0 {
		c.acc += delta
	} else {
		c.decreases++
	}
	return c.acc
}

// DecreaseCount reports how many times the raw source went backwards.
func (c *Monotonic) DecreaseCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decreases
}

// Reset zeroes the accumulator and the decrease counter and resamples the
// source.
func (c *Monotonic) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acc = 0
	c.decreases = 0
	c.lastRaw = c.src.Now()
}

// --- Sources ---

// SystemSource reads the Go runtime's monotonic clock.
type SystemSource struct {
	start time.Time
}

// NewSystemSource anchors a SystemSource at the current instant.
func NewSystemSource() *SystemSource {
	return &SystemSource{start: time.Now()}
}

// Now returns milliseconds since the source was created.
func (s *SystemSource) Now() float64 {
	return float64(time.Since(s.start)) / float64(time.Millisecond)
}

// WallSource reads wall-clock time, which may jump backwards when the system
// clock is adjusted.
type WallSource struct{}

// Now returns Unix milliseconds.
func (WallSource) Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}

// FakeSource is a controllable source for tests.
type FakeSource struct {
	mu  sync.RWMutex
	now float64
}

// NewFakeSource creates a fake source reading ms.
func NewFakeSource(ms float64) *FakeSource {
	return &FakeSource{now: ms}
}

// Now returns the fake reading.
func (f *FakeSource) Now() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

// Set moves the reading to ms, backwards if ms is lower.
func (f *FakeSource) Set(ms float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = ms
}

// Advance moves the reading forward by ms.
func (f *FakeSource) Advance(ms float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += ms
}

// --- Package default ---

var (
	defaultMu    sync.Mutex
	defaultClock *Monotonic
)

// Default returns the shared process clock, creating it on first use.
func Default() *Monotonic {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClock == nil {
		defaultClock = NewMonotonic(NewSystemSource())
	}
	return defaultClock
}

// ResetDefault replaces the shared clock with one over src. A nil src
// restores the system source. It returns the previous clock so tests can
// restore it during cleanup.
func ResetDefault(src Source) *Monotonic {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultClock
	if src == nil {
		src = NewSystemSource()
	}
	defaultClock = NewMonotonic(src)
	return prev
}

// SetDefault installs c as the shared clock and returns the previous one.
func SetDefault(c *Monotonic) *Monotonic {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultClock
	defaultClock = c
	return prev
}
