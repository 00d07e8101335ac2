package driving

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// The read side of the core. Each call captures the current generation of
// the index it reads once and answers from it, so a concurrent promotion
// never mixes two generations in one response.

// RecommendationService returns items similar to a seed item.
type RecommendationService interface {
	// Recommend ranks items similar to req.ItemID, excluding the seed.
	// An unindexed seed fails with domain.ErrUnknownItem.
	Recommend(ctx context.Context, req domain.RecommendRequest) ([]domain.Recommendation, error)

	// RecommendMany maps each seed to its recommendations. Unknown seeds
	// map to an empty list.
	RecommendMany(ctx context.Context, ids []int64, k int, diversify bool) (map[int64][]domain.Recommendation, error)
}

// SearchService ranks products for a free-text query. A blank query fails
// with domain.ErrValidation.
type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error)
}

// AssistantService answers questions from the knowledge base with citations.
type AssistantService interface {
	Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
}

// StatusService reports cache health, the manifest summary and which
// engines can serve.
type StatusService interface {
	Status(ctx context.Context) (*domain.Status, error)
}
