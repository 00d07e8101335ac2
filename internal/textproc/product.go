package textproc

import (
	"sort"
	"strings"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// Field weights of the composite product text.
const (
	nameWeight        = 3
	categoryWeight    = 2
	descriptionWeight = 1
)

// ProductText builds the normalised composite text of a catalog item.
// The name counts three times, the category twice and the description once.
// Attribute values are appended once so brand and model terms are searchable.
func ProductText(item domain.CatalogItem) string {
	var parts []string
	for range nameWeight {
		if item.Name != "" {
			parts = append(parts, item.Name)
		}
	}
	for range categoryWeight {
		if item.Category != "" {
			parts = append(parts, item.Category)
		}
	}
	for range descriptionWeight {
		if item.Description != "" {
			parts = append(parts, item.Description)
		}
	}
	if len(item.Attributes) > 0 {
		keys := make([]string, 0, len(item.Attributes))
		for k := range item.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, item.Attributes[k])
		}
	}
	return Normalise(strings.Join(parts, " "))
}

// ChunkText builds the normalised text of a knowledge base chunk.
// The title is prepended so short chunks keep their topic.
func ChunkText(chunk domain.DocumentChunk) string {
	return Normalise(chunk.Metadata.Title + " " + chunk.Text)
}
