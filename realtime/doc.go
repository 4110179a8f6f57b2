// Package realtime provides the frame primitive that drives a Timeline.
//
// A Timeline never sleeps or spins on its own. It asks a Scheduler for the
// next frame, does one run-to-completion tick when the frame fires, and asks
// again. This package supplies two schedulers:
//
//   - Loop: a ticker-driven event loop goroutine (default 60 FPS). Frame
//     callbacks and posted tasks run on that single goroutine, one at a time.
//   - Manual: a deterministic scheduler for tests. Nothing runs until the
//     test calls Step or Drain.
//
// # Example Usage
//
//	loop := realtime.NewLoop(realtime.Config{
//		FrameRate: 16667 * time.Microsecond, // 60 FPS
//	})
//	loop.Start(ctx)
//	defer loop.Stop()
//
//	tl, _ := timelinex.New(timelinex.DefaultConfig(), timelinex.WithScheduler(loop))
//	loop.Call(ctx, func() error { return tl.Play() })
//
// # Frames vs Tasks
//
// RequestFrame registers a callback for the next frame boundary, like a
// browser's requestAnimationFrame: a callback that requests another frame
// while running is scheduled for the frame after. Post runs a task on the
// loop goroutine as soon as possible, between frames. Channel listeners use
// Post to hop messages from transport goroutines onto the timeline's
// goroutine.
//
// # Threading
//
// Everything a Timeline owns is confined to its scheduler goroutine. Code on
// other goroutines reaches the timeline through Post or Call. Call must not
// be used from the loop goroutine itself; it would wait on its own queue.
package realtime
