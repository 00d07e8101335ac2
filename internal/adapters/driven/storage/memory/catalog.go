package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// Ensure Catalog implements the interfaces.
var (
	_ driven.CatalogSource  = (*Catalog)(nil)
	_ driven.ChangeNotifier = (*Catalog)(nil)
	_ driven.DocumentSource = (*Catalog)(nil)
)

// Catalog is an in-memory catalog and knowledge base.
// Replacing its content notifies change subscribers.
type Catalog struct {
	mu        sync.RWMutex
	items     []domain.CatalogItem
	documents []domain.SourceDocument
	subs      []chan struct{}
}

// NewCatalog creates a catalog with the given content.
func NewCatalog(items []domain.CatalogItem, documents []domain.SourceDocument) *Catalog {
	c := &Catalog{}
	c.set(items, documents)
	return c
}

// ListItems returns every active item ordered by id.
func (c *Catalog) ListItems(_ context.Context) ([]domain.CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CatalogItem, 0, len(c.items))
	for _, it := range c.items {
		if it.Active {
			out = append(out, it)
		}
	}
	return out, nil
}

// ListDocuments returns every document ordered by id.
func (c *Catalog) ListDocuments(_ context.Context) ([]domain.SourceDocument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.documents), nil
}

// ReplaceItems swaps the item list and notifies subscribers.
func (c *Catalog) ReplaceItems(items []domain.CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(items, c.documents)
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Changes returns a channel signalled after each ReplaceItems.
func (c *Catalog) Changes(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		c.subs = slices.DeleteFunc(c.subs, func(s chan struct{}) bool { return s == ch })
		close(ch)
	}()
	return ch, nil
}

// Name returns "memory".
func (c *Catalog) Name() string { return "memory" }

// Close is a no-op.
func (c *Catalog) Close() error { return nil }

func (c *Catalog) set(items []domain.CatalogItem, documents []domain.SourceDocument) {
	c.items = slices.Clone(items)
	slices.SortFunc(c.items, func(a, b domain.CatalogItem) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	c.documents = slices.Clone(documents)
	slices.SortFunc(c.documents, func(a, b domain.SourceDocument) int {
		return domain.CompareIDs(a.ID, b.ID)
	})
}
