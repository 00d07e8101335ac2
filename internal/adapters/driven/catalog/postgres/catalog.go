// Package postgres reads the product catalog from the shop's PostgreSQL
// database and listens for change notifications.
//
// The catalog is read-only. Change signals arrive through LISTEN on a
// channel that the shop publishes to, for example from a trigger:
//
//	CREATE FUNCTION notify_catalog_changed() RETURNS trigger AS $$
//	BEGIN PERFORM pg_notify('catalog_changed', ''); RETURN NULL; END;
//	$$ LANGUAGE plpgsql;
//
//	CREATE TRIGGER catalog_product_changed
//	AFTER INSERT OR UPDATE OR DELETE ON catalog_product
//	FOR EACH STATEMENT EXECUTE FUNCTION notify_catalog_changed();
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// Ensure Catalog implements the interfaces.
var (
	_ driven.CatalogSource  = (*Catalog)(nil)
	_ driven.ChangeNotifier = (*Catalog)(nil)
)

// DefaultChannel is the LISTEN channel for change signals.
const DefaultChannel = "catalog_changed"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
)

const listItemsQuery = `
	SELECT p.id, p.name, COALESCE(p.description, ''), p.category_id, c.name,
	       p.price, p.stock, p.is_active
	FROM catalog_product p
	JOIN catalog_category c ON c.id = p.category_id
	WHERE p.is_active
	ORDER BY p.id`

// Catalog enumerates active products.
type Catalog struct {
	db      *sql.DB
	dsn     string
	channel string
}

// Open connects to the catalog database and checks the connection.
func Open(ctx context.Context, dsn string) (*Catalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog database: %w", err)
	}
	return &Catalog{db: db, dsn: dsn, channel: DefaultChannel}, nil
}

// ListItems returns every active product ordered by id.
func (c *Catalog) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := c.db.QueryContext(ctx, listItemsQuery)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return items, nil
}

// rowScanner is satisfied by *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	var stock int64
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.CategoryID,
		&item.Category, &item.Price, &stock, &item.Active); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("scan product: %w", err)
	}
	item.Attributes = map[string]string{"availability": availability(stock)}
	return item, nil
}

func availability(stock int64) string {
	if stock > 0 {
		return "in stock"
	}
	return "out of stock"
}

// Changes listens on the catalog channel. A reconnect is reported as a
// change because notifications may have been missed while disconnected.
func (c *Catalog) Changes(ctx context.Context) (<-chan struct{}, error) {
	listener := pq.NewListener(c.dsn, minReconnect, maxReconnect, func(_ pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("catalog listener: %v", err)
		}
	})
	if err := listener.Listen(c.channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", c.channel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer listener.Close()
		forward(ctx, listener.NotificationChannel(), out)
	}()
	return out, nil
}

// forward turns notifications into change signals until ctx is done or in
// is closed, then closes out.
func forward(ctx context.Context, in <-chan *pq.Notification, out chan<- struct{}) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-in:
			if !ok {
				return
			}
			if n == nil {
				logger.Info("catalog listener reconnected")
			} else {
				logger.Debug("catalog notification on %s", n.Channel)
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

// Name returns "postgres".
func (c *Catalog) Name() string {
	return "postgres"
}

// Close closes the connection pool.
func (c *Catalog) Close() error {
	return c.db.Close()
}
