package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Search limits.
const (
	DefaultSearchK = 20
	MaxSearchK     = 100
)

// SearchFilters are hard post-filters applied to the candidate pool.
type SearchFilters struct {
	// CategoryIDs restricts results to these categories. Empty means any.
	CategoryIDs []int64 `json:"category_ids,omitempty"`

	// MinPrice is an inclusive lower price bound.
	MinPrice *float64 `json:"min_price,omitempty"`

	// MaxPrice is an inclusive upper price bound.
	MaxPrice *float64 `json:"max_price,omitempty"`
}

// IsEmpty returns true if no filter is set.
func (f SearchFilters) IsEmpty() bool {
	return len(f.CategoryIDs) == 0 && f.MinPrice == nil && f.MaxPrice == nil
}

// Normalised returns a copy with category ids sorted and deduplicated.
func (f SearchFilters) Normalised() SearchFilters {
	out := f
	if len(f.CategoryIDs) > 0 {
		ids := slices.Clone(f.CategoryIDs)
		slices.Sort(ids)
		out.CategoryIDs = slices.Compact(ids)
	}
	return out
}

// Validate checks the price range is coherent.
func (f SearchFilters) Validate() error {
	if f.MinPrice != nil && *f.MinPrice < 0 {
		return fmt.Errorf("%w: min_price must not be negative", ErrValidation)
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return fmt.Errorf("%w: max_price must not be negative", ErrValidation)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return fmt.Errorf("%w: min_price %.2f exceeds max_price %.2f", ErrValidation, *f.MinPrice, *f.MaxPrice)
	}
	return nil
}

// Matches reports whether item passes every filter.
func (f SearchFilters) Matches(item CatalogItem) bool {
	if len(f.CategoryIDs) > 0 && !slices.Contains(f.CategoryIDs, item.CategoryID) {
		return false
	}
	if f.MinPrice != nil && item.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && item.Price > *f.MaxPrice {
		return false
	}
	return true
}

// SearchRequest is a free-text product query.
type SearchRequest struct {
	Query   string        `json:"query"`
	K       int           `json:"k"`
	Filters SearchFilters `json:"filters"`
}

// Normalise trims the query, applies k defaults and normalises filters.
func (r SearchRequest) Normalise() SearchRequest {
	r.Query = strings.Join(strings.Fields(r.Query), " ")
	r.K = ClampK(r.K, DefaultSearchK, MaxSearchK)
	r.Filters = r.Filters.Normalised()
	return r
}

// Validate rejects blank queries and incoherent filters.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query must not be empty", ErrValidation)
	}
	if r.K < 0 {
		return fmt.Errorf("%w: k must not be negative, got %d", ErrValidation, r.K)
	}
	return r.Filters.Validate()
}

// SearchHit is one ranked product for a query.
type SearchHit struct {
	ItemID int64   `json:"id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`

	// Semantic and Lexical are the two components of Score.
	Semantic float64 `json:"semantic_score"`
	Lexical  float64 `json:"lexical_score"`
}
