package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/comalice/timelinex/internal/logging"
)

// FrameID identifies a requested frame so it can be cancelled.
type FrameID uint64

// Scheduler is the request/cancel-next-frame primitive plus a task queue on
// the same goroutine.
type Scheduler interface {
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
	Post(fn func())
}

// ErrLoopStopped is returned by Call once the loop has exited.
var ErrLoopStopped = errors.New("realtime: loop stopped")

type pendingFrame struct {
	id FrameID
	fn func()
}

// Loop runs frames and posted tasks on one goroutine.
type Loop struct {
	frameRate time.Duration
	log       *slog.Logger

	mu       sync.Mutex
	frames   []pendingFrame
	tasks    []func()
	nextID   FrameID
	frameNum uint64
	started  bool

	wake       chan struct{}
	ticker     *time.Ticker
	tickCtx    context.Context
	tickCancel context.CancelFunc
	stopped    chan struct{}
}

// Config configures a Loop.
type Config struct {
	FrameRate time.Duration // Frame period (default 16.667ms, 60 FPS)
	Logger    *slog.Logger
}

// NewLoop creates a loop. It does nothing until Start.
func NewLoop(cfg Config) *Loop {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 16667 * time.Microsecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.WithComponent(logging.Default(), "realtime")
	}
	return &Loop{
		frameRate: cfg.FrameRate,
		log:       cfg.Logger,
		wake:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. The loop exits when ctx is cancelled
// or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return errors.New("realtime: loop already started")
	}
	l.started = true

	l.tickCtx, l.tickCancel = context.WithCancel(ctx)
	l.ticker = time.NewTicker(l.frameRate)

	go l.tickLoop()
	return nil
}

// Stop cancels the loop and waits for the goroutine to exit. Pending frames
// and tasks are discarded.
func (l *Loop) Stop() error {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if !started {
		return nil
	}

	l.tickCancel()
	l.ticker.Stop()
	<-l.stopped
	return nil
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.stopped
}

func (l *Loop) tickLoop() {
	defer close(l.stopped)

	for {
		select {
		case <-l.tickCtx.Done():
			return
		case <-l.ticker.C:
			l.runFrame()
			l.runTasks()
		case <-l.wake:
			l.runTasks()
		}
	}
}

// runFrame runs every callback registered before this frame boundary.
func (l *Loop) runFrame() {
	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.frameNum++
	l.mu.Unlock()

	for _, f := range frames {
		l.safely("frame", f.fn)
	}
}

func (l *Loop) runTasks() {
	for {
		l.mu.Lock()
		tasks := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			l.safely("task", fn)
		}
	}
}

func (l *Loop) safely(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("recovered panic", "kind", kind, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// RequestFrame schedules fn for the next frame.
func (l *Loop) RequestFrame(fn func()) FrameID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.frames = append(l.frames, pendingFrame{id: l.nextID, fn: fn})
	return l.nextID
}

// CancelFrame drops a pending frame. Unknown or already-run ids are ignored.
func (l *Loop) CancelFrame(id FrameID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = removeFrame(l.frames, id)
}

// Post queues fn to run on the loop goroutine. Safe from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop goroutine and waits for its result. A panic in
// fn is returned as an error.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("recovered panic", "kind", "call", "panic", fmt.Sprint(r))
				done <- fmt.Errorf("realtime: panic in call: %v", r)
			}
		}()
		done <- fn()
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}
}

// FrameNumber returns how many frame boundaries have passed.
func (l *Loop) FrameNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frameNum
}

func removeFrame(frames []pendingFrame, id FrameID) []pendingFrame {
	out := frames[:0:0]
	for _, f := range frames {
		if f.id != id {
			out = append(out, f)
		}
	}
	return out
}

var (
	defaultOnce sync.Once
	defaultLoop *Loop
)

// Default returns a process-wide loop, started on first use and never
// stopped. Timelines built without an explicit scheduler share it.
func Default() *Loop {
	defaultOnce.Do(func() {
		defaultLoop = NewLoop(Config{})
		_ = defaultLoop.Start(context.Background())
	})
	return defaultLoop
}
