package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/vinayprograms/agentkit/logging"
	"github.com/vinayprograms/tracereplay/internal/config"
	"github.com/vinayprograms/tracereplay/internal/cursor"
	"github.com/vinayprograms/tracereplay/internal/replay"
	"github.com/vinayprograms/tracereplay/internal/tracefile"
)

// resolveMode picks the --mode flag over the configured mode.
func resolveMode(flag string, cfg *config.Config) (cursor.Mode, error) {
	mode := flag
	if mode == "" {
		mode = cfg.Player.Mode
	}
	switch mode {
	case "", "step", "line":
		return cursor.ParseMode(mode), nil
	default:
		return cursor.ModeStep, fmt.Errorf("invalid mode %q: want step or line", mode)
	}
}

// newRenderer builds a renderer from the [render] config section.
func newRenderer(w io.Writer, cfg *config.Config) *replay.Renderer {
	return replay.NewRenderer(w,
		replay.WithMaxValueWidth(cfg.Render.MaxValueWidth),
		replay.WithHeap(cfg.Render.ShowHeap),
		replay.WithOutput(cfg.Render.ShowOutput),
		replay.WithContextLines(cfg.Render.ContextLines),
	)
}

// loadTrace loads a trace file, reporting instrumentation failures separately.
func loadTrace(path string, logger *logging.Logger) (*tracefile.Trace, error) {
	tr, err := tracefile.Load(path)
	if err != nil {
		var execErr *tracefile.ExecutionError
		if errors.As(err, &execErr) {
			logger.Error("program failed before a trace was recorded", map[string]interface{}{
				"trace": path,
				"type":  execErr.Type,
				"line":  execErr.Line,
			})
		}
		return nil, fmt.Errorf("failed to load trace %s: %w", path, err)
	}
	logger.Debug("trace loaded", map[string]interface{}{
		"trace":         path,
		"lines":         tr.LineCount(),
		"relationships": len(tr.Relationships),
	})
	return tr, nil
}
