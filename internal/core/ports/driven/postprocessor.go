package driven

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// PostProcessor is one stage of knowledge base chunking. The stage that
// splits a document is handed nil chunks; later stages rewrite the chunks
// they receive and may drop some.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, doc *domain.SourceDocument, chunks []domain.DocumentChunk) ([]domain.DocumentChunk, error)
}

// PostProcessorPipeline turns one document into its final chunks.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.SourceDocument) ([]domain.DocumentChunk, error)
}
