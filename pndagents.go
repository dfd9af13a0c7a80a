// Package pndagents provides a top-level convenience entry point for running
// agent pipelines with minimal boilerplate.
//
// Usage:
//
//	import "github.com/shvee-pandora/pnd-agents-sub001"
//
//	engine, err := pndagents.New()
//	engine, err := pndagents.New(pndagents.WithRules("pipelines.yaml"))
//	engine, err := pndagents.New(pndagents.WithStore(store), pndagents.WithLogger(logger))
//
// The engine is wired with the built-in classifier and pipeline table and an
// in-memory snapshot store; register stage handlers on engine.Registry()
// before running. Use the workflow and persistence packages directly when you
// need full control.
package pndagents

import (
	"go.uber.org/zap"

	"github.com/shvee-pandora/pnd-agents-sub001/workflow"
)

// Option configures the engine created by [New].
type Option func(*settings)

type settings struct {
	rulesPath string
	store     workflow.SnapshotStore
	logger    *zap.Logger
	engine    []workflow.EngineOption
}

// WithRules merges the pipeline rule resource at path over the built-in
// table.
func WithRules(path string) Option {
	return func(s *settings) { s.rulesPath = path }
}

// WithStore sets the snapshot store. The default is an in-memory store.
func WithStore(store workflow.SnapshotStore) Option {
	return func(s *settings) { s.store = store }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithEngineOptions passes extra options (metrics, tracing) through to the
// engine.
func WithEngineOptions(opts ...workflow.EngineOption) Option {
	return func(s *settings) { s.engine = append(s.engine, opts...) }
}

// New creates a ready-to-use [workflow.Engine] with the built-in classifier
// and pipeline table.
func New(opts ...Option) (*workflow.Engine, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	pipelines, err := workflow.NewPipelineBuilder(s.rulesPath, s.logger)
	if err != nil {
		return nil, err
	}
	store := s.store
	if store == nil {
		store = workflow.NewMemorySnapshotStore()
	}

	return workflow.NewEngine(
		workflow.NewDefaultClassifier(),
		pipelines,
		workflow.NewRegistry(s.logger),
		store,
		s.logger,
		s.engine...,
	), nil
}
