// Package postprocessors turns knowledge base documents into indexable chunks.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs a fixed list of processors over one document at a time.
// The first stage receives nil chunks and produces them; later stages
// rewrite or drop chunks.
type Pipeline struct {
	stages []driven.PostProcessor
}

// NewPipeline returns a pipeline running stages in order.
func NewPipeline(stages ...driven.PostProcessor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the processor names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// Process chunks doc. A pipeline without stages yields no chunks.
func (p *Pipeline) Process(ctx context.Context, doc *domain.SourceDocument) ([]domain.DocumentChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrValidation)
	}

	var chunks []domain.DocumentChunk
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := stage.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", stage.Name(), doc.ID, err)
		}
		chunks = out
	}
	logger.Debug("postprocessors: %s -> %d chunks", doc.ID, len(chunks))
	return chunks, nil
}
