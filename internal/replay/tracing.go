// Tracing instrumentation for view rebuilds.
package replay

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"github.com/vinayprograms/tracereplay/internal/cursor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startRebuildSpan starts a span for one view rebuild.
func startRebuildSpan(ctx context.Context, playerID string, pos cursor.Position, mode cursor.Mode) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "replay.rebuild")
	span.SetAttributes(
		attribute.String("player.id", playerID),
		attribute.Int("cursor.line", pos.Line),
		attribute.Int("cursor.step", pos.Step),
		attribute.String("cursor.mode", mode.String()),
	)
	return ctx, span
}

// endRebuildSpan ends the rebuild span with the size of what was rebuilt.
func endRebuildSpan(span trace.Span, v *View) {
	span.SetAttributes(
		attribute.Int("view.line_number", v.LineNumber),
		attribute.Int("view.heap_nodes", len(v.Graph.Nodes)),
		attribute.Int("view.arrows", len(v.Arrows)),
		attribute.Bool("view.finished", v.Finished),
	)
	tracer := telemetry.GetTracer()
	if tracer.Debug() && v.Tree != nil {
		span.SetAttributes(attribute.String("view.overlay", truncate(v.Tree.String(), 2000)))
	}
	span.End()
}
