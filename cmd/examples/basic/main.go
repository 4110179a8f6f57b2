package main

import (
	"context"
	"fmt"
	"time"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/realtime"
)

func logHook(tl *timelinex.Timeline, msg string) timelinex.Hook {
	return func() error {
		fmt.Printf("%6.0fms  %s\n", tl.CurrentTime(), msg)
		return nil
	}
}

// ---

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	loop := realtime.NewLoop(realtime.Config{})
	if err := loop.Start(ctx); err != nil {
		panic(err)
	}
	defer loop.Stop()

	cfg := timelinex.DefaultConfig()
	cfg.Duration = 1200
	origin, err := timelinex.New(cfg, timelinex.WithName("origin"), timelinex.WithScheduler(loop))
	if err != nil {
		panic(err)
	}
	shadow, err := timelinex.New(timelinex.DefaultConfig(), timelinex.WithName("shadow"), timelinex.WithScheduler(loop))
	if err != nil {
		panic(err)
	}

	ended := make(chan struct{})
	err = loop.Call(ctx, func() error {
		origin.AddTrack(timelinex.TrackConfig{
			ID:        "intro",
			StartTime: 0,
			EndTime:   timelinex.Ms(400),
			OnStart:   logHook(origin, "intro start"),
			OnEnd:     logHook(origin, "intro end"),
		})
		origin.AddTrack(timelinex.TrackConfig{
			ID:        "outro",
			StartTime: 800,
			OnStart:   logHook(origin, "outro start"),
		})
		origin.AddTrack(timelinex.TrackConfig{
			ID:        "end",
			StartTime: 1200,
			Duration:  timelinex.Ms(0),
			OnStart: func() error {
				close(ended)
				return nil
			},
		})
		origin.SetTimeout(func() { fmt.Printf("%6.0fms  timeout fired\n", origin.CurrentTime()) }, 250)
		origin.SetInterval(func() { fmt.Printf("%6.0fms  interval\n", origin.CurrentTime()) }, 300)

		if err := shadow.SetOrigin(origin); err != nil {
			return err
		}
		shadow.AddTrack(timelinex.TrackConfig{
			ID:        "mirror",
			StartTime: 600,
			Duration:  timelinex.Ms(100),
			OnStart:   logHook(shadow, "shadow mirror start"),
			OnEnd:     logHook(shadow, "shadow mirror end"),
		})
		return origin.Play()
	})
	if err != nil {
		panic(err)
	}

	select {
	case <-ended:
	case <-ctx.Done():
	}
	loop.Call(context.Background(), origin.Dispose)
}
