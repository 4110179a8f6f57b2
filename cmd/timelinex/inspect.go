package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	"github.com/comalice/timelinex/internal/production"
)

var inspectFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "format, f",
		Value: "gantt",
		Usage: "gantt or dot",
	},
	cli.IntFlag{
		Name:  "width, w",
		Value: 60,
		Usage: "gantt bar width",
	},
	cli.BoolFlag{
		Name:  "list, l",
		Usage: "list stored snapshot names",
	},
}

func inspect(c *cli.Context) error {
	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()
	if store == nil {
		return cli.NewExitError("inspect needs --store", 2)
	}

	ctx := context.Background()
	if c.Bool("list") {
		names, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	name := c.Args().First()
	if name == "" {
		return cli.NewExitError("missing snapshot name", 2)
	}
	snapshot, err := store.Load(ctx, name)
	if err != nil {
		return err
	}

	v := &production.DefaultVisualizer{Width: c.Int("width")}
	switch c.String("format") {
	case "dot":
		fmt.Print(v.ExportDOT(snapshot))
	case "gantt":
		fmt.Print(v.ExportGantt(snapshot))
	default:
		return cli.NewExitError(fmt.Sprintf("unknown format %q", c.String("format")), 2)
	}
	return nil
}
