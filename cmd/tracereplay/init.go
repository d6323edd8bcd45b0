package main

import (
	"fmt"

	"github.com/vinayprograms/tracereplay/internal/config"
)

// Run writes the default configuration.
func (c *InitCmd) Run(g *Globals) error {
	if err := config.Default().Save(c.Path, c.Force); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s\n", c.Path)
	return nil
}
