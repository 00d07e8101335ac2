package driven

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// CatalogSource enumerates the current catalog. The core never writes to it.
type CatalogSource interface {
	// ListItems returns every active item ordered by id.
	ListItems(ctx context.Context) ([]domain.CatalogItem, error)

	// Name identifies the source in logs and status.
	Name() string

	// Close releases resources.
	Close() error
}

// ChangeNotifier signals that catalog items changed.
type ChangeNotifier interface {
	// Changes returns a channel that receives a value after each detected change.
	// The channel is closed when ctx is done.
	Changes(ctx context.Context) (<-chan struct{}, error)
}

// DocumentSource enumerates the knowledge base documents.
type DocumentSource interface {
	// ListDocuments returns every document ordered by id.
	ListDocuments(ctx context.Context) ([]domain.SourceDocument, error)
}
