// Package mcp serves the retrieval core to AI agents over the Model Context
// Protocol: product search, recommendations and knowledge base answers as
// tools, status and manifest as resources.
package mcp

import (
	"errors"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
)

var (
	ErrMissingSearchService    = errors.New("mcp: search service is required")
	ErrMissingRecommendService = errors.New("mcp: recommendation service is required")
)

// Ports are the core services the server calls. Search and Recommend are
// required; a nil optional port hides its tool or resource.
type Ports struct {
	Recommend driving.RecommendationService
	Search    driving.SearchService
	Assistant driving.AssistantService
	Status    driving.StatusService
	Manifest  driving.ManifestService
}

// Validate reports the first missing required port.
func (p *Ports) Validate() error {
	switch {
	case p.Search == nil:
		return ErrMissingSearchService
	case p.Recommend == nil:
		return ErrMissingRecommendService
	}
	return nil
}
