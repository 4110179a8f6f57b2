package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/internal/production"
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "log-level",
		Value:  "info",
		Usage:  "debug, info, warn or error",
		EnvVar: "TIMELINEX_LOG_LEVEL",
	},
	cli.BoolFlag{
		Name:   "log-json",
		Usage:  "emit JSON log lines",
		EnvVar: "TIMELINEX_LOG_JSON",
	},
}

var sceneFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "scene, s",
		Usage: "scene `FILE` with timeline config and tracks",
	},
	cli.StringFlag{
		Name:  "config, c",
		Usage: "timeline config `FILE`, used when no scene is given",
	},
}

var storeFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "store",
		Usage:  "snapshot directory, or a .db file for SQLite",
		EnvVar: "TIMELINEX_STORE",
	},
	cli.StringFlag{
		Name:  "store-format",
		Value: "json",
		Usage: "json or yaml, for directory stores",
	},
}

// Execute builds the CLI and runs it with args.
func Execute(args []string) error {
	app := cli.App{
		Name:      "timelinex",
		HelpName:  "timelinex",
		Usage:     "virtual-clock timeline scheduler",
		Version:   fmt.Sprintf("%s (%s, %s/%s)", version, commit, runtime.GOOS, runtime.GOARCH),
		UsageText: "timelinex <command> [arguments...]",
		Flags:     globalFlags,
		Before: func(c *cli.Context) error {
			logging.SetDefault(logging.New(logging.Config{
				Level:  logging.ParseLevel(c.GlobalString("log-level")),
				Output: os.Stderr,
				JSON:   c.GlobalBool("log-json"),
			}))
			return nil
		},
		Commands: []cli.Command{
			{
				Name:   "origin",
				Usage:  "run a timeline and serve control, sync and metrics over HTTP",
				Action: origin,
				Flags:  slices.Concat(originFlags, sceneFlags, storeFlags),
			},
			{
				Name:   "shadow",
				Usage:  "follow a remote origin over WebSocket",
				Action: shadow,
				Flags:  slices.Concat(shadowFlags, sceneFlags),
			},
			{
				Name:      "inspect",
				Usage:     "render a stored snapshot",
				ArgsUsage: "<name>",
				Action:    inspect,
				Flags:     slices.Concat(inspectFlags, storeFlags),
			},
			{
				Name:   "validate",
				Usage:  "check a scene or config file",
				Action: validate,
				Flags:  sceneFlags,
			},
		},
	}
	return app.Run(args)
}

// loadScene reads --scene, else --config, else the defaults.
func loadScene(c *cli.Context, name string) (production.Scene, error) {
	if path := c.String("scene"); path != "" {
		scene, err := production.LoadScene(afero.NewOsFs(), path)
		if err != nil {
			return production.Scene{}, err
		}
		if scene.Name == "" {
			scene.Name = name
		}
		return scene, nil
	}
	cfg := timelinex.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = timelinex.LoadConfig(path); err != nil {
			return production.Scene{}, err
		}
	}
	return production.Scene{Name: name, Timeline: cfg}, nil
}

// openStore returns nil when --store is unset.
func openStore(c *cli.Context) (production.Persister, func() error, error) {
	path := c.String("store")
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	switch filepath.Ext(path) {
	case ".db", ".sqlite", ".sqlite3":
		p, err := production.NewSQLitePersister(path)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	p, err := production.NewOSFilePersister(path, production.Format(c.String("store-format")))
	if err != nil {
		return nil, nil, err
	}
	return p, func() error { return nil }, nil
}

// trackLogger attaches log lines to every scene track.
func trackLogger(log *slog.Logger) production.Binder {
	return func(spec production.TrackSpec, cfg *timelinex.TrackConfig) {
		cfg.OnStart = func() error {
			log.Info("track start", "track", spec.ID)
			return nil
		}
		cfg.OnEnd = func() error {
			log.Info("track end", "track", spec.ID)
			return nil
		}
	}
}

func validate(c *cli.Context) error {
	scene, err := loadScene(c, "default")
	if err != nil {
		return err
	}
	fmt.Printf("%s: ok, %d tracks, duration %v, loop %v\n",
		scene.Name, len(scene.Tracks), scene.Timeline.Duration, scene.Timeline.Loop)
	return nil
}
