package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/control"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/internal/production"
	"github.com/comalice/timelinex/realtime"
	"github.com/comalice/timelinex/stats"
)

var originFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "addr",
		Value:  "127.0.0.1:7070",
		Usage:  "HTTP listen address",
		EnvVar: "TIMELINEX_ADDR",
	},
	cli.BoolFlag{
		Name:  "play",
		Usage: "start playing immediately",
	},
	cli.DurationFlag{
		Name:  "autosave",
		Usage: "save a snapshot to --store at this interval (0 disables)",
	},
}

func origin(c *cli.Context) error {
	log := logging.WithComponent(nil, "origin")
	scene, err := loadScene(c, "origin")
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The loop outlives the signal context so shutdown can still run on it.
	loop := realtime.NewLoop(realtime.Config{Logger: log})
	if err := loop.Start(context.Background()); err != nil {
		return err
	}
	defer loop.Stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := stats.NewMetrics(reg)

	tl, err := timelinex.New(scene.Timeline,
		timelinex.WithName(scene.Name),
		timelinex.WithScheduler(loop),
		timelinex.WithStats(metrics.Sink(scene.Name)),
		timelinex.WithPublisher(production.NewLogPublisher(log)),
	)
	if err != nil {
		return err
	}

	err = loop.Call(ctx, func() error {
		if _, err := scene.Apply(tl, trackLogger(log)); err != nil {
			return err
		}
		if c.Bool("play") {
			return tl.Play()
		}
		return nil
	})
	if err != nil {
		return err
	}

	mux := control.NewMux(control.Options{
		Timeline:  tl,
		Runner:    loop,
		Persister: store,
		Gatherer:  reg,
		Logger:    log,
	})
	defer mux.Close()
	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving", "addr", srv.Addr, "timeline", scene.Name)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if every := c.Duration("autosave"); every > 0 && store != nil {
		g.Go(func() error {
			return autosave(gctx, loop, tl, store, every)
		})
	}

	err = g.Wait()
	return errors.Join(err, shutdown(loop, tl, store))
}

// shutdown disposes the timeline on its loop and stores its last snapshot
// when a store is configured.
func shutdown(loop *realtime.Loop, tl *timelinex.Timeline, store production.Persister) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var s timelinex.Snapshot
	err := loop.Call(ctx, func() error {
		s = tl.Snapshot()
		return tl.Dispose()
	})
	if err != nil {
		return fmt.Errorf("dispose: %w", err)
	}
	if store == nil {
		return nil
	}
	if err := store.Save(ctx, s.Name, s); err != nil {
		return fmt.Errorf("save %q: %w", s.Name, err)
	}
	return nil
}

// autosave stores a snapshot every interval until ctx ends.
func autosave(ctx context.Context, loop *realtime.Loop, tl *timelinex.Timeline, store production.Persister, every time.Duration) error {
	log := logging.WithComponent(nil, "autosave")
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var s timelinex.Snapshot
			if err := loop.Call(ctx, func() error { s = tl.Snapshot(); return nil }); err != nil {
				continue
			}
			if err := store.Save(ctx, s.Name, s); err != nil {
				log.Warn("autosave failed", "error", err)
			}
		}
	}
}
