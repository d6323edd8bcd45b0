package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/vinayprograms/tracereplay/internal/replay"
)

// Run prints one position, or with --all every position followed by a summary.
func (c *ShowCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	telem, err := startTelemetry(cfg)
	if err != nil {
		return err
	}
	defer telem.Close()

	mode, err := resolveMode(c.Mode, cfg)
	if err != nil {
		return err
	}

	tr, err := loadTrace(c.Trace, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := newRenderer(os.Stdout, cfg)
	if c.All {
		return r.Timeline(ctx, tr, mode)
	}

	player := replay.NewPlayer(tr, replay.WithMode(mode), replay.WithLogger(logger))
	player.Seek(replay.PositionAt(tr, c.Line, c.Step))
	r.Render(player.View(ctx))
	return nil
}
