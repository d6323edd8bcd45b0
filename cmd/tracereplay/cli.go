// Package main defines the CLI structure using kong.
package main

import (
	"time"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Globals

	View    ViewCmd    `cmd:"" help:"Step through a trace interactively"`
	Show    ShowCmd    `cmd:"" help:"Print one position, or the whole timeline"`
	Stats   StatsCmd   `cmd:"" help:"Show trace statistics"`
	Check   CheckCmd   `cmd:"" help:"Check a trace against lesson expectations"`
	Init    InitCmd    `cmd:"" help:"Write a default tracereplay.toml"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// Globals are flags shared by every command.
type Globals struct {
	Config      string           `help:"Config file path (default: ./tracereplay.toml)" placeholder:"PATH"`
	VersionFlag kong.VersionFlag `name:"version" help:"Print version and exit"`
}

// ViewCmd opens the interactive player.
type ViewCmd struct {
	Trace    string        `arg:"" help:"Trace file (.json or .jsonl)"`
	Follow   bool          `short:"f" help:"Reload the trace when the file changes"`
	Mode     string        `help:"Traversal mode: step or line (default from config)"`
	Interval time.Duration `help:"Auto-play period, e.g. 500ms (default from config)"`
	Line     int           `short:"l" help:"1-based trace line to open at"`
	Play     bool          `help:"Start auto-play immediately"`
	NoPager  bool          `help:"Print the opening position instead of starting the pager"`
}

// ShowCmd renders positions without interaction.
type ShowCmd struct {
	Trace string `arg:"" help:"Trace file (.json or .jsonl)"`
	Line  int    `short:"l" help:"1-based trace line (default: the last)"`
	Step  int    `short:"s" help:"1-based step within the line (default: its last)"`
	Mode  string `help:"Timeline granularity for --all: step or line"`
	All   bool   `short:"a" help:"Print every position in order followed by a summary"`
}

// StatsCmd prints aggregate statistics.
type StatsCmd struct {
	Trace string `arg:"" help:"Trace file (.json or .jsonl)"`
}

// CheckCmd evaluates lessons.
type CheckCmd struct {
	Trace  string   `arg:"" help:"Trace file (.json or .jsonl)"`
	Lesson []string `required:"" help:"Lesson file or directory of lessons (repeatable)" placeholder:"PATH"`
}

// InitCmd writes a default config file.
type InitCmd struct {
	Path  string `arg:"" optional:"" default:"tracereplay.toml" help:"Where to write the config"`
	Force bool   `help:"Overwrite an existing file"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
