// Package jsonfile reads the product catalog from a JSON file and watches
// the file for changes.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// Ensure Catalog implements the interfaces.
var (
	_ driven.CatalogSource  = (*Catalog)(nil)
	_ driven.ChangeNotifier = (*Catalog)(nil)
)

// DefaultDebounce coalesces the burst of events an editor produces on save.
const DefaultDebounce = 250 * time.Millisecond

// Catalog reads items from a JSON file on every ListItems call.
// The file holds either an array of items or an object {"items": [...]}.
type Catalog struct {
	path     string
	debounce time.Duration
}

// New creates a catalog backed by path. The file must exist.
func New(path string) (*Catalog, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("catalog file: %w", err)
	}
	return &Catalog{path: abs, debounce: DefaultDebounce}, nil
}

// Path returns the catalog file path.
func (c *Catalog) Path() string {
	return c.path
}

// ListItems returns every active item ordered by id.
func (c *Catalog) ListItems(_ context.Context) ([]domain.CatalogItem, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	items, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}

	active := items[:0]
	for _, it := range items {
		if it.Active {
			active = append(active, it)
		}
	}
	slices.SortFunc(active, func(a, b domain.CatalogItem) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return active, nil
}

// Decode parses a catalog document. Items without an explicit "active"
// field are active.
func Decode(data []byte) ([]domain.CatalogItem, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		var doc struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		raw = doc.Items
	}

	items := make([]domain.CatalogItem, 0, len(raw))
	seen := make(map[int64]bool, len(raw))
	for i, r := range raw {
		item := domain.CatalogItem{Active: true}
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if item.ID <= 0 {
			return nil, fmt.Errorf("item %d: id must be positive", i)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("item %d: duplicate id %d", i, item.ID)
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return items, nil
}

// Changes watches the catalog file. The directory is watched rather than
// the file so that editors replacing the file by rename are seen.
func (c *Catalog) Changes(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(c.path), err)
	}

	out := make(chan struct{}, 1)
	go c.watch(ctx, watcher, out)
	return out, nil
}

func (c *Catalog) watch(ctx context.Context, watcher *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)
	defer watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != c.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Debug("catalog watcher: %s", event)
			if timer == nil {
				timer = time.NewTimer(c.debounce)
			} else {
				timer.Reset(c.debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("catalog watcher: %v", err)
		case <-fire:
			fire = nil
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

// Name returns the catalog file name.
func (c *Catalog) Name() string {
	return "json:" + filepath.Base(c.path)
}

// Close is a no-op. Watchers stop with their context.
func (c *Catalog) Close() error {
	return nil
}
