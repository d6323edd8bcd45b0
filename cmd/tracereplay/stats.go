package main

import (
	"os"

	"github.com/vinayprograms/tracereplay/internal/replay"
)

// Run prints aggregate statistics for the trace.
func (c *StatsCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	tr, err := loadTrace(c.Trace, newLogger(cfg))
	if err != nil {
		return err
	}

	replay.PrintStats(os.Stdout, replay.ComputeStats(tr))
	return nil
}
