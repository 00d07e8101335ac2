// Package chunker splits knowledge base documents into overlapping word windows.
package chunker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// DefaultChunkSize is the default number of words per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of words shared by consecutive chunks.
const DefaultChunkOverlap = 50

// idLength is the number of hex characters of the content hash kept in a chunk id.
const idLength = 16

// Processor splits document content into fixed-size word windows.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in words.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in words.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks. Input chunks are ignored.
// Chunk ids hash the document id and the window text, so they only change
// when the text does.
func (p *Processor) Process(ctx context.Context, doc *domain.SourceDocument, _ []domain.DocumentChunk) ([]domain.DocumentChunk, error) {
	words := strings.Fields(doc.Content)
	if len(words) == 0 {
		return nil, nil
	}

	step := p.chunkSize - p.overlap
	chunks := make([]domain.DocumentChunk, 0, len(words)/step+1)
	meta := domain.ChunkMetadata{Type: doc.Type, Category: doc.Category, Title: doc.Title}

	for start := 0; ; start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+p.chunkSize, len(words))
		text := strings.Join(words[start:end], " ")
		chunks = append(chunks, domain.DocumentChunk{
			ID:               ChunkID(doc.ID, text),
			SourceDocumentID: doc.ID,
			Index:            len(chunks),
			Text:             text,
			Metadata:         meta,
		})
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}

// ChunkID derives a stable chunk id from a document id and window text.
func ChunkID(documentID, text string) string {
	sum := sha256.Sum256([]byte(documentID + "\x00" + text))
	return documentID + ":" + hex.EncodeToString(sum[:])[:idLength]
}
