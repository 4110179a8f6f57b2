package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/internal/production"
	"github.com/comalice/timelinex/realtime"
)

const defaultScene = `
name: demo
timeline:
  duration: 6000
tracks:
  - id: fade-in
    start: 0
    end: 1500
    easing: ease-out
  - id: title
    start: 500
    duration: 3000
    easing: ease-in-out
  - id: pulse
    start: 1000
    duration: 400
    loop: true
  - id: credits
    start: 4000
    end: 6000
    easing: steps(4)
`

func loadScene() (production.Scene, error) {
	if len(os.Args) > 1 {
		return production.LoadScene(afero.NewOsFs(), os.Args[1])
	}
	return production.ParseScene([]byte(defaultScene))
}

func main() {
	scene, err := loadScene()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loop := realtime.NewLoop(realtime.Config{})
	if err := loop.Start(ctx); err != nil {
		panic(err)
	}
	defer loop.Stop()

	events := make(chan timelinex.Event, 100)
	tl, err := timelinex.New(scene.Timeline,
		timelinex.WithName(scene.Name),
		timelinex.WithScheduler(loop),
		timelinex.WithLogger(logging.Discard()),
		timelinex.WithPublisher(production.NewChannelPublisher(events)),
	)
	if err != nil {
		panic(err)
	}

	p := mpb.New(mpb.WithWidth(48), mpb.WithRefreshRate(30*time.Millisecond))
	barStyle := mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟")

	err = loop.Call(ctx, func() error {
		_, err := scene.Apply(tl, func(spec production.TrackSpec, cfg *timelinex.TrackConfig) {
			name := spec.ID
			if spec.Loop {
				name += " (loop)"
			}
			bar := p.New(100,
				barStyle,
				mpb.PrependDecorators(
					decor.Name(name, decor.WC{W: 16, C: decor.DindentRight}),
				),
				mpb.AppendDecorators(
					decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
				),
			)
			cfg.OnUpdate = func(_, pct float64) error {
				bar.SetCurrent(int64(pct * 100))
				return nil
			}
			if !spec.Loop {
				cfg.OnEnd = func() error {
					bar.SetCurrent(100)
					return nil
				}
			}
		})
		if err != nil {
			return err
		}
		return tl.Play()
	})
	if err != nil {
		panic(err)
	}

	var final timelinex.Snapshot
wait:
	for {
		select {
		case ev := <-events:
			if ev.Type == timelinex.EventEnded || ev.Type == timelinex.EventHalted {
				break wait
			}
		case <-ctx.Done():
			break wait
		}
	}

	loop.Call(context.Background(), func() error {
		final = tl.Snapshot()
		return tl.Dispose()
	})
	// Looping bars never complete on their own.
	p.Shutdown()

	fmt.Println()
	fmt.Print((&production.DefaultVisualizer{Width: 48}).ExportGantt(final))
}
