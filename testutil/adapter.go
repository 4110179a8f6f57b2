package testutil

import (
	"context"
	"time"

	"github.com/comalice/timelinex/clock"
	"github.com/comalice/timelinex/realtime"
)

// Driver provides a common interface over the manual and the real frame
// scheduler, so the same timeline scenario can run on both.
type Driver interface {
	Start(ctx context.Context) error
	Stop() error
	Scheduler() realtime.Scheduler
	Clock() clock.Clock
	// Run executes fn on the scheduler goroutine and waits for it.
	Run(fn func())
	// Advance lets ms of clock time pass and runs the frames that fall in it.
	Advance(ms float64)
}

// ManualDriver steps a realtime.Manual against a fake clock. Every Advance
// is exactly one frame.
type ManualDriver struct {
	Source *clock.FakeSource
	Sched  *realtime.Manual
	clk    *clock.Monotonic
}

// NewManualDriver creates a driver whose clock starts at 0.
func NewManualDriver() *ManualDriver {
	src := clock.NewFakeSource(0)
	return &ManualDriver{
		Source: src,
		Sched:  realtime.NewManual(),
		clk:    clock.NewMonotonic(src),
	}
}

func (d *ManualDriver) Start(ctx context.Context) error { return nil }
func (d *ManualDriver) Stop() error                     { return nil }

func (d *ManualDriver) Scheduler() realtime.Scheduler { return d.Sched }
func (d *ManualDriver) Clock() clock.Clock            { return d.clk }

func (d *ManualDriver) Run(fn func()) {
	d.Sched.Post(fn)
	d.Sched.Drain()
}

func (d *ManualDriver) Advance(ms float64) {
	d.Source.Advance(ms)
	d.Sched.Drain()
	d.Sched.Step()
	d.Sched.Drain()
}

// LoopDriver wraps a running realtime.Loop and the system clock.
type LoopDriver struct {
	loop      *realtime.Loop
	clk       *clock.Monotonic
	frameRate time.Duration
}

// NewLoopDriver creates a driver with the given frame period.
func NewLoopDriver(frameRate time.Duration) *LoopDriver {
	return &LoopDriver{
		loop:      realtime.NewLoop(realtime.Config{FrameRate: frameRate}),
		clk:       clock.NewMonotonic(clock.NewSystemSource()),
		frameRate: frameRate,
	}
}

func (d *LoopDriver) Start(ctx context.Context) error { return d.loop.Start(ctx) }
func (d *LoopDriver) Stop() error                     { return d.loop.Stop() }

func (d *LoopDriver) Scheduler() realtime.Scheduler { return d.loop }
func (d *LoopDriver) Clock() clock.Clock            { return d.clk }

func (d *LoopDriver) Run(fn func()) {
	_ = d.loop.Call(context.Background(), func() error {
		fn()
		return nil
	})
}

func (d *LoopDriver) Advance(ms float64) {
	// Real frames land on ticker boundaries; allow one extra period.
	time.Sleep(time.Duration(ms*float64(time.Millisecond)) + d.frameRate)
}
