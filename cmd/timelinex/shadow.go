package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/internal/production"
	"github.com/comalice/timelinex/realtime"
	"github.com/comalice/timelinex/transport"
)

var shadowFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "url",
		Value:  "ws://127.0.0.1:7070/sync",
		Usage:  "origin sync endpoint",
		EnvVar: "TIMELINEX_ORIGIN",
	},
}

func shadow(c *cli.Context) error {
	log := logging.WithComponent(nil, "shadow")
	scene, err := loadScene(c, "shadow")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := realtime.NewLoop(realtime.Config{Logger: log})
	if err := loop.Start(context.Background()); err != nil {
		return err
	}
	defer loop.Stop()

	ch, err := transport.Dial(ctx, c.String("url"), log)
	if err != nil {
		return err
	}
	defer ch.Close()

	tl, err := timelinex.New(scene.Timeline,
		timelinex.WithName(scene.Name),
		timelinex.WithScheduler(loop),
		timelinex.WithPublisher(production.NewLogPublisher(log)),
	)
	if err != nil {
		return err
	}

	err = loop.Call(ctx, func() error {
		if _, err := scene.Apply(tl, trackLogger(log)); err != nil {
			return err
		}
		return tl.SetRemoteOrigin(ch)
	})
	if err != nil {
		return err
	}
	log.Info("pairing", "url", c.String("url"), "shadow_id", tl.ShadowID())

	select {
	case <-ctx.Done():
	case <-ch.Done():
		err = ch.Err()
		log.Warn("origin connection closed", "error", err)
	}
	disposeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(err, loop.Call(disposeCtx, tl.Dispose))
}
