package domain

import (
	"fmt"
	"strconv"
)

// CatalogItem is a product record owned by the catalog store.
// The core reads items and never mutates them.
type CatalogItem struct {
	// ID is the catalog primary key.
	ID int64 `json:"id" yaml:"id"`

	// Name is the product title.
	Name string `json:"name" yaml:"name"`

	// Description is free text describing the product.
	Description string `json:"description" yaml:"description"`

	// CategoryID references the catalog category.
	CategoryID int64 `json:"category_id" yaml:"category_id"`

	// Category is the display name of the category.
	Category string `json:"category" yaml:"category"`

	// Price is the unit price in the catalog currency.
	Price float64 `json:"price" yaml:"price"`

	// Attributes holds structured characteristics (brand, colour, storage, ...).
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// Active reports whether the item is listed. Inactive items are never indexed.
	Active bool `json:"active" yaml:"active"`
}

// Key returns the identifier used for the item inside a product index.
func (i CatalogItem) Key() string {
	return ItemKey(i.ID)
}

// ItemKey converts a catalog id into an index entry id.
func ItemKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseItemKey converts an index entry id back into a catalog id.
func ParseItemKey(key string) (int64, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: item key %q", ErrValidation, key)
	}
	return id, nil
}
