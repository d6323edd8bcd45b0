package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/vinayprograms/tracereplay/internal/replay"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// Run opens the interactive player, or prints the opening position when stdout is not a terminal.
func (c *ViewCmd) Run(g *Globals) error {
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

	interval := c.Interval
	if interval <= 0 {
		interval = cfg.Interval()
	}
	line := c.Line
	if line <= 0 {
		line = cfg.Player.StartLine
	}

	interactive := !c.NoPager && isTerminal(os.Stdout)
	if interactive {
		// the pager owns the terminal from here on
		var closeLog func()
		logger, closeLog, err = pagerLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	player := replay.NewPlayer(tr,
		replay.WithMode(mode),
		replay.WithInterval(interval),
		replay.WithStartLine(line),
		replay.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !interactive {
		newRenderer(os.Stdout, cfg).Render(player.View(ctx))
		return nil
	}

	if c.Play {
		player.TogglePlay()
	}

	pager := replay.NewPager(filepath.Base(c.Trace), player, newRenderer(nil, cfg))
	logger.Info("starting player", map[string]interface{}{
		"player": player.ID(),
		"trace":  c.Trace,
		"mode":   mode.String(),
		"follow": c.Follow,
	})

	if c.Follow {
		reload := func() (*tracefile.Trace, error) {
			return tracefile.Load(c.Trace)
		}
		if err := pager.RunLive(ctx, c.Trace, reload); err != nil {
			return fmt.Errorf("player failed: %w", err)
		}
		return nil
	}

	if err := pager.Run(ctx); err != nil {
		return fmt.Errorf("player failed: %w", err)
	}
	return nil
}
