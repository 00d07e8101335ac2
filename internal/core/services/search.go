package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
	"github.com/Jeremy-Tarlie/smartmarket/internal/textproc"
)

// Verify interface compliance.
var _ driving.SearchService = (*SearchEngine)(nil)

// expansionFactor multiplies the candidate pool on each re-query.
const expansionFactor = 4

// maxReasonTerms bounds the matched words named in a search reason.
const maxReasonTerms = 3

// SearchEngine ranks catalog items by a blend of semantic similarity and
// lexical overlap with the query.
type SearchEngine struct {
	products *IndexStore
	embedder *Embedder
	cache    *Cache
	settings domain.SearchSettings
}

// NewSearchEngine creates the engine over the product index.
func NewSearchEngine(products *IndexStore, embedder *Embedder, cache *Cache, settings domain.SearchSettings) *SearchEngine {
	if settings.OverFetch < 1 {
		settings.OverFetch = 1
	}
	return &SearchEngine{products: products, embedder: embedder, cache: cache, settings: settings}
}

// Search returns at most k items for the query, best first.
// Filters are applied to the semantic candidate pool; when they leave fewer
// than k items the pool is re-queried with a larger k.
func (e *SearchEngine) Search(ctx context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalise()

	gen := e.products.Current()
	if gen == nil {
		return nil, fmt.Errorf("search: %w", domain.ErrNoGeneration)
	}

	fp, err := Fingerprint(domain.EngineSearch, req, map[string]uint64{domain.ArtifactProductIndex: gen.ID()})
	if err != nil {
		return nil, err
	}
	hits, _, err := cached(ctx, e.cache, fp, func(ctx context.Context) ([]domain.SearchHit, error) {
		return e.compute(ctx, gen, req)
	})
	return hits, err
}

func (e *SearchEngine) compute(ctx context.Context, gen *Generation, req domain.SearchRequest) ([]domain.SearchHit, error) {
	logger.Section("Search")
	text := textproc.Normalise(req.Query)
	if text == "" {
		// Only stop words or short words: embed the folded query as is.
		text = textproc.Fold(req.Query)
	}
	emb, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if emb.Degraded {
		logger.Warn("search: query %q has no usable embedding", req.Query)
		return []domain.SearchHit{}, nil
	}
	queryTerms := gen.Lexical().Weights(textproc.Tokens(req.Query))

	total := gen.Info().VectorCount
	fetch := min(req.K*e.settings.OverFetch, total)
	var results []domain.SearchHit
	for attempt := 0; ; attempt++ {
		hits, err := gen.Query(ctx, emb.Vector, fetch)
		if err != nil {
			return nil, err
		}
		results = e.score(gen, hits, queryTerms, req)
		logger.Debug("search: pool %d, %d after filters", len(hits), len(results))

		if len(results) >= req.K || len(hits) < fetch || fetch >= total {
			break
		}
		// The last expansion covers the whole index so filters never truncate.
		if attempt+1 >= e.settings.MaxExpansions {
			fetch = total
		} else {
			fetch = min(fetch*expansionFactor, total)
		}
		logger.Debug("search: filters left %d of %d, re-querying with k=%d", len(results), req.K, fetch)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ItemID < results[j].ItemID
	})
	if len(results) > req.K {
		results = results[:req.K]
	}
	for i := range results {
		entry, _ := gen.Entry(domain.ItemKey(results[i].ItemID))
		results[i].Reason = searchReason(req.Query, results[i].Score, MatchedTerms(queryTerms, entry.Terms))
	}
	return results, nil
}

// score applies filters and blends semantic and lexical scores.
func (e *SearchEngine) score(gen *Generation, hits []driven.VectorHit, queryTerms map[string]float64, req domain.SearchRequest) []domain.SearchHit {
	ws, wl := e.settings.SemanticWeight, e.settings.LexicalWeight
	total := ws + wl

	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		entry, ok := gen.Entry(h.ID)
		if !ok || entry.Item == nil {
			continue
		}
		if !req.Filters.Matches(*entry.Item) {
			continue
		}
		lexical := LexicalOverlap(queryTerms, entry.Terms)
		if h.Similarity < e.settings.MinSimilarity && lexical == 0 {
			continue
		}
		out = append(out, domain.SearchHit{
			ItemID:   entry.Item.ID,
			Score:    (ws*h.Similarity + wl*lexical) / total,
			Semantic: h.Similarity,
			Lexical:  lexical,
		})
	}
	return out
}

// searchReason names the match strength and the query words that matched.
func searchReason(query string, score float64, matched []string) string {
	var band string
	switch {
	case score > 0.8:
		band = "Excellent match"
	case score > 0.6:
		band = "Strong match"
	case score > 0.4:
		band = "Good match"
	default:
		band = "Weak match"
	}

	words := matchedWords(query, matched)
	if len(words) == 0 {
		return fmt.Sprintf("%s for %q", band, query)
	}
	return fmt.Sprintf("%s on %s", band, strings.Join(words, ", "))
}

// matchedWords maps matched stems back to the words the caller typed.
func matchedWords(query string, stems []string) []string {
	if len(stems) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(stems))
	for _, s := range stems {
		want[s] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, w := range textproc.Words(query) {
		stem := textproc.Stem(w)
		if _, ok := want[stem]; !ok {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == maxReasonTerms {
			break
		}
	}
	return out
}
