package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// Verify interface compliance.
var _ driving.RecommendationService = (*RecommendationEngine)(nil)

// maxReasonAttributes bounds the shared attributes named in a reason.
const maxReasonAttributes = 2

// RecommendationEngine ranks items similar to a seed item.
type RecommendationEngine struct {
	products *IndexStore
	cache    *Cache
	settings domain.RecommendSettings
}

// NewRecommendationEngine creates the engine over the product index.
func NewRecommendationEngine(products *IndexStore, cache *Cache, settings domain.RecommendSettings) *RecommendationEngine {
	if settings.OverFetch < 1 {
		settings.OverFetch = 1
	}
	return &RecommendationEngine{products: products, cache: cache, settings: settings}
}

// Recommend returns at most k items similar to the seed, never the seed
// itself, best first. With Diversify set the selection is re-ranked by
// maximal marginal relevance.
func (e *RecommendationEngine) Recommend(ctx context.Context, req domain.RecommendRequest) ([]domain.Recommendation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalise()

	gen := e.products.Current()
	if gen == nil {
		return nil, fmt.Errorf("recommend: %w", domain.ErrNoGeneration)
	}

	fp, err := Fingerprint(domain.EngineRecommend, req, map[string]uint64{domain.ArtifactProductIndex: gen.ID()})
	if err != nil {
		return nil, err
	}
	recs, _, err := cached(ctx, e.cache, fp, func(ctx context.Context) ([]domain.Recommendation, error) {
		return e.compute(ctx, gen, req)
	})
	return recs, err
}

// RecommendMany runs Recommend for each seed. Unknown seeds map to an empty list.
func (e *RecommendationEngine) RecommendMany(ctx context.Context, ids []int64, k int, diversify bool) (map[int64][]domain.Recommendation, error) {
	out := make(map[int64][]domain.Recommendation, len(ids))
	for _, id := range ids {
		recs, err := e.Recommend(ctx, domain.RecommendRequest{ItemID: id, K: k, Diversify: diversify})
		switch {
		case errors.Is(err, domain.ErrUnknownItem):
			out[id] = []domain.Recommendation{}
		case err != nil:
			return nil, err
		default:
			out[id] = recs
		}
	}
	return out, nil
}

func (e *RecommendationEngine) compute(ctx context.Context, gen *Generation, req domain.RecommendRequest) ([]domain.Recommendation, error) {
	seedKey := domain.ItemKey(req.ItemID)
	seed, ok := gen.Entry(seedKey)
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownItem, req.ItemID)
	}
	vec, ok := gen.Vector(seedKey)
	if !ok {
		logger.Warn("recommend: item %d has a degraded embedding", req.ItemID)
		return []domain.Recommendation{}, nil
	}

	// +1 leaves room for the seed itself.
	hits, err := gen.Query(ctx, vec, req.K*e.settings.OverFetch+1)
	if err != nil {
		return nil, err
	}
	candidates := make([]driven.VectorHit, 0, len(hits))
	for _, h := range hits {
		if h.ID == seedKey || h.Similarity < e.settings.MinSimilarity {
			continue
		}
		candidates = append(candidates, h)
	}
	logger.Debug("recommend %d: %d candidates from %d hits", req.ItemID, len(candidates), len(hits))

	var selected []driven.VectorHit
	if req.Diversify {
		selected = mmr(gen, candidates, req.K, e.settings.MMRLambda)
	} else {
		selected = candidates[:min(req.K, len(candidates))]
	}

	out := make([]domain.Recommendation, 0, len(selected))
	for _, h := range selected {
		entry, ok := gen.Entry(h.ID)
		if !ok || entry.Item == nil {
			continue
		}
		out = append(out, domain.Recommendation{
			ItemID: entry.Item.ID,
			Score:  h.Similarity,
			Reason: recommendReason(seed.Item, entry.Item, h.Similarity),
		})
	}
	return out, nil
}

// mmr selects k candidates maximising
// lambda*relevance - (1-lambda)*max similarity to the already selected.
// The selection is returned ordered by relevance.
func mmr(gen *Generation, candidates []driven.VectorHit, k int, lambda float64) []driven.VectorHit {
	if k >= len(candidates) {
		return candidates
	}
	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vectors[i], _ = gen.Vector(c.ID)
	}

	// redundancy[i] is the max similarity of candidate i to the selection.
	redundancy := make([]float64, len(candidates))
	taken := make([]bool, len(candidates))
	selected := make([]driven.VectorHit, 0, k)
	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if taken[i] {
				continue
			}
			score := lambda*c.Similarity - (1-lambda)*redundancy[i]
			if score > bestScore || (score == bestScore && domain.CompareIDs(c.ID, candidates[best].ID) < 0) {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		taken[best] = true
		selected = append(selected, candidates[best])
		for i := range candidates {
			if taken[i] {
				continue
			}
			if sim := dot(vectors[i], vectors[best]); sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Similarity != selected[j].Similarity {
			return selected[i].Similarity > selected[j].Similarity
		}
		return domain.CompareIDs(selected[i].ID, selected[j].ID) < 0
	})
	return selected
}

// recommendReason explains a recommendation from catalog metadata,
// falling back to the similarity band.
func recommendReason(seed, cand *domain.CatalogItem, score float64) string {
	var parts []string
	if seed != nil && cand != nil {
		if seed.CategoryID == cand.CategoryID && cand.Category != "" {
			parts = append(parts, "same category: "+cand.Category)
		}
		shared := sharedAttributes(seed.Attributes, cand.Attributes)
		for _, key := range shared[:min(len(shared), maxReasonAttributes)] {
			parts = append(parts, fmt.Sprintf("same %s: %s", key, cand.Attributes[key]))
		}
		if similarPrice(seed.Price, cand.Price) {
			parts = append(parts, "similar price")
		}
	}
	if len(parts) == 0 {
		return similarityBand(score)
	}
	return capitalise(strings.Join(parts, ", "))
}

func similarityBand(score float64) string {
	switch {
	case score > 0.8:
		return "Very similar characteristics"
	case score > 0.6:
		return "Similar characteristics"
	case score > 0.4:
		return "Related product"
	default:
		return "Complementary product"
	}
}

func sharedAttributes(a, b map[string]string) []string {
	var keys []string
	for k, v := range a {
		if v != "" && strings.EqualFold(b[k], v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// similarPrice reports whether two prices are within 20% of each other.
func similarPrice(a, b float64) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	return math.Abs(a-b) <= 0.2*math.Max(a, b)
}

func capitalise(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range min(len(a), len(b)) {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
