package graph

import "go.uber.org/zap"

// OrchestratorBuilderOption is a functional option for configuring an Orchestrator.
type OrchestratorBuilderOption func(*orchestratorImpl)

// WithLogger replaces the orchestrator's logger.
//
// Parameters:
//   - log: the logger
//
// Returns:
//   - OrchestratorBuilderOption: a function that applies the logger
func WithLogger(log *zap.Logger) OrchestratorBuilderOption {
	return func(o *orchestratorImpl) {
		o.log = log
	}
}

// WithRegistry shares an existing registry.
func WithRegistry(r *Registry) OrchestratorBuilderOption {
	return func(o *orchestratorImpl) {
		o.registry = r
	}
}
