package deferred

import (
	"time"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
)

// RendererBuilderOption is a functional option for configuring a Renderer.
type RendererBuilderOption func(*rendererImpl)

// WithLogger replaces the renderer's logger and hands it to the frame graph.
//
// Parameters:
//   - log: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger
func WithLogger(log *zap.Logger) RendererBuilderOption {
	return func(r *rendererImpl) {
		r.log = log
		r.gopts = append(r.gopts, graph.WithLogger(log.Named("graph")))
	}
}

// WithClock replaces the clock used to throttle voxel rebuilds.
func WithClock(now func() time.Time) RendererBuilderOption {
	return func(r *rendererImpl) {
		r.now = now
	}
}
