package software

import (
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/parallel"
	"github.com/Carmen-Shannon/oxy-deferred/engine/raster"
)

// BackendBuilderOption is a functional option for configuring a Backend.
type BackendBuilderOption func(*backendImpl)

// WithPool shares a worker pool. The backend does not stop a shared pool on Close.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - BackendBuilderOption: a function that applies the pool
func WithPool(pool parallel.Pool) BackendBuilderOption {
	return func(b *backendImpl) {
		b.pool = pool
	}
}

// WithRasterizer replaces the geometry rasterizer.
func WithRasterizer(r raster.Rasterizer) BackendBuilderOption {
	return func(b *backendImpl) {
		b.raster = r
	}
}

// WithLogger replaces the backend's logger.
func WithLogger(log *zap.Logger) BackendBuilderOption {
	return func(b *backendImpl) {
		b.log = log
	}
}
