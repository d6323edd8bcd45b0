// Package main is the entry point for the tracereplay CLI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/agentkit/telemetry"
	"github.com/vinayprograms/tracereplay/internal/config"
	"github.com/vinayprograms/tracereplay/internal/evaltree"
	"github.com/vinayprograms/tracereplay/internal/objgraph"
	"github.com/vinayprograms/tracereplay/internal/relations"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Load .env for any additional env vars
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tracereplay"),
		kong.Description("Replay recorded program executions step by step."),
		kong.UsageOnError(),
		kongVars(),
	)

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// Run prints version information.
func (c *VersionCmd) Run(g *Globals) error {
	fmt.Printf("tracereplay version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

// loadConfig resolves configuration: --config if given, else ./tracereplay.toml, else defaults.
func (g *Globals) loadConfig() (*config.Config, error) {
	if g.Config != "" {
		return config.LoadFile(g.Config)
	}
	return config.LoadDefault()
}

// newLogger returns the CLI logger. It writes to stderr so rendered output stays clean.
func newLogger(cfg *config.Config) *logging.Logger {
	return setupLogging(cfg, os.Stderr)
}

// setupLogging builds the root logger at the configured level and routes every
// package's log lines through it.
func setupLogging(cfg *config.Config, w io.Writer) *logging.Logger {
	root := logging.New()
	root.SetOutput(w)
	switch cfg.Log.Level {
	case "debug":
		root.SetLevel(logging.LevelDebug)
	case "warn":
		root.SetLevel(logging.LevelWarn)
	case "error":
		root.SetLevel(logging.LevelError)
	default:
		root.SetLevel(logging.LevelInfo)
	}

	tracefile.SetLogger(root)
	objgraph.SetLogger(root)
	evaltree.SetLogger(root)
	relations.SetLogger(root)
	return root.WithComponent("cli")
}

// pagerLogger re-routes logging away from the terminal while the pager runs:
// to [log] file when set, otherwise nowhere.
func pagerLogger(cfg *config.Config) (*logging.Logger, func(), error) {
	if cfg.Log.File == "" {
		return setupLogging(cfg, io.Discard), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return setupLogging(cfg, f), func() { f.Close() }, nil
}

// startTelemetry creates the span exporter named by the config.
func startTelemetry(cfg *config.Config) (telemetry.Exporter, error) {
	if !cfg.Telemetry.Enabled {
		return telemetry.NewNoopExporter(), nil
	}
	telem, err := telemetry.NewExporter(cfg.Telemetry.Protocol, cfg.Telemetry.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry exporter: %w", err)
	}
	return telem, nil
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
