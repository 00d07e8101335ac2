package postprocessors

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/postprocessors/chunker"
	"github.com/Jeremy-Tarlie/smartmarket/internal/postprocessors/markdown"
)

// Factory builds a processor from its options table.
type Factory func(opts map[string]any) (driven.PostProcessor, error)

// Registry resolves the processor names used in a PipelineConfig.
type Registry map[string]Factory

// Builtin returns the processors shipped with smartmarket.
func Builtin() Registry {
	return Registry{
		"chunker": newChunker,
		"markdown": func(map[string]any) (driven.PostProcessor, error) {
			return markdown.New(), nil
		},
	}
}

// Names lists the registered processors in sorted order.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// Assemble builds the processors cfg names, in order. An unknown name fails
// with domain.ErrUnsupportedType.
func (r Registry) Assemble(cfg domain.PipelineConfig) (*Pipeline, error) {
	stages := make([]driven.PostProcessor, 0, len(cfg.Processors))
	for _, name := range cfg.Processors {
		factory, ok := r[name]
		if !ok {
			return nil, fmt.Errorf("%w: document processor %q (known: %s)",
				domain.ErrUnsupportedType, name, strings.Join(r.Names(), ", "))
		}
		proc, err := factory(cfg.GetProcessorConfig(name))
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", name, err)
		}
		stages = append(stages, proc)
	}
	return NewPipeline(stages...), nil
}

// NewDefaultPipeline chunks documents with the assistant's window settings
// and strips markdown from each chunk.
func NewDefaultPipeline(settings domain.AssistantSettings) (*Pipeline, error) {
	return Builtin().Assemble(domain.PipelineConfigFor(settings))
}

// newChunker reads chunk_size and overlap, both counted in words.
func newChunker(opts map[string]any) (driven.PostProcessor, error) {
	var options []chunker.Option
	size, ok, err := intOption(opts, "chunk_size")
	if err != nil {
		return nil, err
	}
	if ok {
		options = append(options, chunker.WithChunkSize(size))
	}
	overlap, ok, err := intOption(opts, "overlap")
	if err != nil {
		return nil, err
	}
	if ok {
		options = append(options, chunker.WithOverlap(overlap))
	}
	return chunker.New(options...), nil
}

// intOption accepts the integer shapes Go literals, TOML and JSON produce.
func intOption(opts map[string]any, key string) (int, bool, error) {
	raw, ok := opts[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != float64(int(v)) {
			return 0, false, fmt.Errorf("%w: %s must be a whole number, got %v", domain.ErrValidation, key, v)
		}
		return int(v), true, nil
	}
	return 0, false, fmt.Errorf("%w: %s must be a number, got %T", domain.ErrValidation, key, raw)
}
