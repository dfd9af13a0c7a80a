package workflow

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// pipelineRulesFile is the on-disk shape of the external rule resource.
type pipelineRulesFile struct {
	Pipelines map[string][]string `yaml:"pipelines"`
}

// PipelineBuilder maps a task type to an ordered list of stage names. An
// external YAML resource is merged over the immutable built-in table at
// construction: external entries override per key, they never replace the
// whole table. Unknown task types fall back to the default pipeline.
type PipelineBuilder struct {
	mu       sync.RWMutex
	path     string
	defaults map[TaskType][]string
	merged   map[TaskType][]string
	logger   *zap.Logger
	reloads  singleflight.Group
}

// NewPipelineBuilder creates a builder backed by the built-in table, merged
// with the rule resource at path when path is non-empty. A missing or
// unreadable resource fails construction; use an empty path to run on the
// built-in table alone.
func NewPipelineBuilder(path string, logger *zap.Logger) (*PipelineBuilder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &PipelineBuilder{
		path:     path,
		defaults: defaultPipelines(),
		logger:   logger.With(zap.String("component", "pipeline_builder")),
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

// Build returns a copy of the pipeline for the task type. Callers own the
// returned slice; reloads never mutate pipelines already handed out.
func (b *PipelineBuilder) Build(taskType TaskType) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pipeline, ok := b.merged[taskType]
	if !ok {
		pipeline = b.merged[TaskTypeDefault]
	}
	out := make([]string, len(pipeline))
	copy(out, pipeline)
	return out
}

// TaskTypes returns the task types with a configured pipeline.
func (b *PipelineBuilder) TaskTypes() []TaskType {
	b.mu.RLock()
	defer b.mu.RUnlock()
	types := make([]TaskType, 0, len(b.merged))
	for t := range b.merged {
		types = append(types, t)
	}
	return types
}

// Reload re-reads the external resource. Concurrent calls are collapsed into
// a single read.
func (b *PipelineBuilder) Reload() error {
	_, err, _ := b.reloads.Do("reload", func() (any, error) {
		return nil, b.load()
	})
	return err
}

func (b *PipelineBuilder) load() error {
	merged := make(map[TaskType][]string, len(b.defaults))
	for t, stages := range b.defaults {
		merged[t] = stages
	}

	if b.path != "" {
		data, err := os.ReadFile(b.path)
		if err != nil {
			return fmt.Errorf("read pipeline rules %s: %w", b.path, err)
		}
		var file pipelineRulesFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("parse pipeline rules %s: %w", b.path, err)
		}
		for name, stages := range file.Pipelines {
			merged[TaskType(name)] = stages
		}
		b.logger.Info("pipeline rules loaded",
			zap.String("path", b.path),
			zap.Int("overrides", len(file.Pipelines)),
		)
	}

	b.mu.Lock()
	b.merged = merged
	b.mu.Unlock()
	return nil
}

// defaultPipelines is the immutable built-in rule table. Stage names refer to
// the external domain agents registered on the Registry.
func defaultPipelines() map[TaskType][]string {
	return map[TaskType][]string{
		TaskTypeDefault:          {"task_analyzer", "task_executor", "result_reporter"},
		TaskTypeDesignContent:    {"figma_reader", "placement_mapper", "content_builder"},
		TaskTypeProductSearch:    {"product_searcher", "product_enricher", "result_reporter"},
		TaskTypeReporting:        {"data_collector", "report_generator"},
		TaskTypeCodeQuality:      {"sonar_checker", "report_generator"},
		TaskTypeTicketManagement: {"ticket_reader", "ticket_updater"},
	}
}
