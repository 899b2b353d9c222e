package gpu

import "go.uber.org/zap"

// BackendBuilderOption is a functional option for configuring a Backend.
type BackendBuilderOption func(*backendImpl)

// WithLogger replaces the backend's logger.
//
// Parameters:
//   - log: the logger
//
// Returns:
//   - BackendBuilderOption: a function that applies the logger
func WithLogger(log *zap.Logger) BackendBuilderOption {
	return func(b *backendImpl) {
		b.log = log
	}
}
