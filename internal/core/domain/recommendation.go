package domain

import "fmt"

// Recommendation limits.
const (
	DefaultRecommendK = 10
	MaxRecommendK     = 50
)

// RecommendRequest asks for items similar to a seed item.
type RecommendRequest struct {
	ItemID    int64 `json:"product_id"`
	K         int   `json:"k"`
	Diversify bool  `json:"diversify"`
}

// Normalise applies defaults and caps to K.
func (r RecommendRequest) Normalise() RecommendRequest {
	r.K = ClampK(r.K, DefaultRecommendK, MaxRecommendK)
	return r
}

// Validate checks the request parameters.
func (r RecommendRequest) Validate() error {
	if r.ItemID <= 0 {
		return fmt.Errorf("%w: product id must be positive, got %d", ErrValidation, r.ItemID)
	}
	if r.K < 0 {
		return fmt.Errorf("%w: k must not be negative, got %d", ErrValidation, r.K)
	}
	return nil
}

// Recommendation is one ranked similar item.
type Recommendation struct {
	ItemID int64   `json:"id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ClampK replaces a non-positive k with def and caps it at max.
func ClampK(k, def, max int) int {
	if k <= 0 {
		return def
	}
	if k > max {
		return max
	}
	return k
}
