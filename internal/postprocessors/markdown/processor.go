// Package markdown strips Markdown markup from chunk text.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

var (
	imageRe    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	headingRe  = regexp.MustCompile(`(^|\s)#{1,6}\s+`)
	emphasisRe = regexp.MustCompile("[*_`~]{1,3}")
	bulletRe   = regexp.MustCompile(`(^|\s)[-+>]\s+`)
)

// Processor rewrites chunk text as plain prose. Chunk ids are kept.
type Processor struct{}

// New creates a markdown processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "markdown"
}

// Process strips markup from each chunk. Chunks left empty are dropped.
func (p *Processor) Process(_ context.Context, _ *domain.SourceDocument, chunks []domain.DocumentChunk) ([]domain.DocumentChunk, error) {
	out := chunks[:0]
	for _, c := range chunks {
		c.Text = Strip(c.Text)
		if c.Text == "" {
			continue
		}
		c.Index = len(out)
		out = append(out, c)
	}
	return out, nil
}

// Strip removes links, images, headings, emphasis and list markers.
func Strip(text string) string {
	text = imageRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "$1")
	text = bulletRe.ReplaceAllString(text, "$1")
	text = emphasisRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
