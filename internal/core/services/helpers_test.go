package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/embedding/hashing"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/storage/memory"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/vectorindex/flat"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/postprocessors"
	"github.com/Jeremy-Tarlie/smartmarket/internal/textproc"
)

// --- Mock implementations ---

// mockEmbeddingService returns fixed vectors for known texts and delegates
// the rest to a fallback. Queued errors are returned by successive calls.
type mockEmbeddingService struct {
	mu       sync.Mutex
	dims     int
	model    string
	vectors  map[string][]float32
	errs     []error
	calls    int
	batches  [][]string
	fallback driven.EmbeddingService
}

func newMockEmbeddingService(dims int) *mockEmbeddingService {
	return &mockEmbeddingService{
		dims:    dims,
		model:   "mock",
		vectors: make(map[string][]float32),
	}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.batches = append(m.batches, texts)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.vectors[text]; ok {
			out[i] = v
			continue
		}
		if m.fallback != nil {
			v, err := m.fallback.Embed(ctx, text)
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		out[i] = make([]float32, m.dims)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return m.dims }
func (m *mockEmbeddingService) ModelName() string            { return m.model }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// keywordEmbeddingService embeds text as keyword counts plus a small bias,
// so cosine similarity between texts is predictable.
type keywordEmbeddingService struct {
	keywords []string
}

const keywordBias = 0.1

func newKeywordEmbeddingService(keywords ...string) *keywordEmbeddingService {
	return &keywordEmbeddingService{keywords: keywords}
}

func (k *keywordEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(k.keywords)+1)
	for i, kw := range k.keywords {
		vec[i] = float32(strings.Count(text, kw))
	}
	vec[len(k.keywords)] = keywordBias
	return vec, nil
}

func (k *keywordEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = k.Embed(ctx, text)
	}
	return out, nil
}

func (k *keywordEmbeddingService) Dimensions() int              { return len(k.keywords) + 1 }
func (k *keywordEmbeddingService) ModelName() string            { return "keywords" }
func (k *keywordEmbeddingService) Ping(_ context.Context) error { return nil }
func (k *keywordEmbeddingService) Close() error                 { return nil }

// blockingEmbeddingService holds every call until release is closed.
// entered is closed by the first call.
type blockingEmbeddingService struct {
	driven.EmbeddingService
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingEmbeddingService(inner driven.EmbeddingService) *blockingEmbeddingService {
	return &blockingEmbeddingService{
		EmbeddingService: inner,
		entered:          make(chan struct{}),
		release:          make(chan struct{}),
	}
}

func (b *blockingEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.EmbeddingService.EmbedBatch(ctx, texts)
}

func (b *blockingEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// mockLLMService returns a fixed answer or queued errors.
type mockLLMService struct {
	mu       sync.Mutex
	answer   string
	errs     []error
	requests []driven.AnswerRequest
}

func (m *mockLLMService) GenerateAnswer(_ context.Context, req driven.AnswerRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", err
	}
	return m.answer, nil
}

func (m *mockLLMService) ModelName() string            { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

// truncatingArtifactStore drops the last entry of every loaded artifact
// while enabled, simulating a damaged file.
type truncatingArtifactStore struct {
	*memory.ArtifactStore
	enabled bool
}

func (s *truncatingArtifactStore) Load(ctx context.Context, name string, generation uint64) (*domain.IndexArtifact, error) {
	art, err := s.ArtifactStore.Load(ctx, name, generation)
	if err != nil || !s.enabled || len(art.Entries) == 0 {
		return art, err
	}
	art.Entries = art.Entries[:len(art.Entries)-1]
	return art, nil
}

// failingCatalog always fails to list items.
type failingCatalog struct{ err error }

func (f failingCatalog) ListItems(_ context.Context) ([]domain.CatalogItem, error) {
	return nil, f.err
}
func (f failingCatalog) Name() string { return "failing" }
func (f failingCatalog) Close() error { return nil }

// failingCacheStore fails every operation.
type failingCacheStore struct{}

var errCacheDown = errors.New("cache down")

func (failingCacheStore) Get(_ context.Context, _ string) (domain.CacheEntry, bool, error) {
	return domain.CacheEntry{}, false, errCacheDown
}
func (failingCacheStore) Set(_ context.Context, _ domain.CacheEntry) error { return errCacheDown }
func (failingCacheStore) Clear(_ context.Context) error                    { return errCacheDown }
func (failingCacheStore) PurgeExpired(_ context.Context) (int, error)      { return 0, errCacheDown }
func (failingCacheStore) Len(_ context.Context) (int, error)               { return 0, errCacheDown }
func (failingCacheStore) Name() string                                     { return "failing" }

// Ensure mocks implement interfaces
var _ driven.EmbeddingService = (*mockEmbeddingService)(nil)
var _ driven.EmbeddingService = (*keywordEmbeddingService)(nil)
var _ driven.LLMService = (*mockLLMService)(nil)
var _ driven.ArtifactStore = (*truncatingArtifactStore)(nil)
var _ driven.CatalogSource = failingCatalog{}
var _ driven.CacheStore = failingCacheStore{}

// --- Fixtures ---

func sampleItems() []domain.CatalogItem {
	return []domain.CatalogItem{
		{
			ID: 1, Name: "Samsung Galaxy S24", CategoryID: 1, Category: "Smartphones", Price: 899,
			Description: "Smartphone Android avec écran AMOLED et triple caméra",
			Attributes:  map[string]string{"brand": "Samsung", "storage": "256GB"},
			Active:      true,
		},
		{
			ID: 2, Name: "Samsung Galaxy S23", CategoryID: 1, Category: "Smartphones", Price: 749,
			Description: "Smartphone Android compact avec écran AMOLED",
			Attributes:  map[string]string{"brand": "Samsung", "storage": "128GB"},
			Active:      true,
		},
		{
			ID: 3, Name: "Apple iPhone 15", CategoryID: 1, Category: "Smartphones", Price: 969,
			Description: "Smartphone iOS avec puce A16",
			Attributes:  map[string]string{"brand": "Apple", "storage": "128GB"},
			Active:      true,
		},
		{
			ID: 4, Name: "Sony Bravia 55 4K", CategoryID: 2, Category: "Téléviseurs", Price: 1099,
			Description: "Téléviseur LED 4K HDR",
			Attributes:  map[string]string{"brand": "Sony"},
			Active:      true,
		},
		{
			ID: 5, Name: "Samsung QLED 65", CategoryID: 2, Category: "Téléviseurs", Price: 1299,
			Description: "Téléviseur QLED grand format",
			Attributes:  map[string]string{"brand": "Samsung"},
			Active:      true,
		},
		{
			ID: 6, Name: "Casque Sony WH-1000XM5", CategoryID: 3, Category: "Audio", Price: 379,
			Description: "Casque sans fil à réduction de bruit",
			Attributes:  map[string]string{"brand": "Sony"},
			Active:      true,
		},
		{
			ID: 7, Name: "Coque silicone iPhone 15", CategoryID: 4, Category: "Accessoires", Price: 29,
			Description: "Coque de protection souple",
			Attributes:  map[string]string{"brand": "Apple"},
			Active:      true,
		},
		{
			ID: 8, Name: "Nokia 3310", CategoryID: 1, Category: "Smartphones", Price: 59,
			Description: "Téléphone classique",
			Active:      false,
		},
	}
}

func sampleDocuments() []domain.SourceDocument {
	return []domain.SourceDocument{
		{
			ID: "returns", Title: "Politique de retour", Type: "policy", Category: "retours",
			Content: "# Retours\nVous disposez de **30 jours** pour retourner un article. " +
				"Le retour est gratuit pour les membres.",
		},
		{
			ID: "shipping", Title: "Livraison", Type: "guide", Category: "livraison",
			Content: "La livraison standard prend 3 à 5 jours ouvrés. La livraison express arrive en 24h.",
		},
		{
			ID: "warranty", Title: "Garantie", Type: "policy", Category: "garantie",
			Content: "Tous nos produits sont garantis deux ans. La garantie couvre les défauts de fabrication.",
		},
	}
}

// --- Harness ---

// harness wires the services over in-memory adapters.
type harness struct {
	catalog    *memory.Catalog
	manifests  *memory.ManifestStore
	artifacts  *truncatingArtifactStore
	cacheStore *memory.CacheStore
	settings   domain.RetrievalSettings

	manifest  *Manifest
	embedder  *Embedder
	products  *IndexStore
	knowledge *IndexStore
	cache     *Cache
	rebuilder *Rebuilder
}

func newHarness(t *testing.T, backend driven.EmbeddingService, items []domain.CatalogItem, docs []domain.SourceDocument) *harness {
	t.Helper()
	if backend == nil {
		backend = hashing.NewEmbeddingService(hashing.Config{Dimensions: 256})
	}

	settings := domain.DefaultRetrievalSettings()
	settings.Build.MinInterval = 0
	settings.Build.RetryBackoff = 0

	h := &harness{
		catalog:    memory.NewCatalog(items, docs),
		manifests:  memory.NewManifestStore(),
		artifacts:  &truncatingArtifactStore{ArtifactStore: memory.NewArtifactStore()},
		cacheStore: memory.NewCacheStore(100),
		settings:   settings,
	}
	h.manifest = NewManifest(h.manifests, h.artifacts)
	h.embedder = NewEmbedder(backend, WithEmbedRetry(1, 0))
	h.products = NewIndexStore(domain.CorpusProducts, flat.NewBuilder())
	h.knowledge = NewIndexStore(domain.CorpusDocuments, flat.NewBuilder())
	h.cache = NewCache(h.cacheStore, settings.Cache)

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Assistant)
	require.NoError(t, err)

	h.rebuilder = NewRebuilder(RebuilderDeps{
		Manifest:  h.manifest,
		Artifacts: h.artifacts,
		Embedder:  h.embedder,
		Catalog:   h.catalog,
		Documents: h.catalog,
		Pipeline:  pipeline,
		Products:  h.products,
		Knowledge: h.knowledge,
		Cache:     h.cache,
	}, settings.Build)
	h.rebuilder.sleep = noSleep
	return h
}

// buildAll builds both indexes and requires both to succeed.
func (h *harness) buildAll(t *testing.T) {
	t.Helper()
	for _, artifact := range domain.IndexArtifacts() {
		rec, err := h.rebuilder.TriggerRebuild(context.Background(), artifact, true)
		require.NoError(t, err)
		require.Equal(t, domain.BuildSucceeded, rec.Status, artifact)
	}
}

func (h *harness) recommender() *RecommendationEngine {
	return NewRecommendationEngine(h.products, h.cache, h.settings.Recommend)
}

func (h *harness) searcher() *SearchEngine {
	return NewSearchEngine(h.products, h.embedder, h.cache, h.settings.Search)
}

func (h *harness) assistant(generator driven.LLMService) *Assistant {
	a := NewAssistant(h.knowledge, h.embedder, generator, h.cache, h.settings.Assistant, h.settings.LLM)
	a.sleep = noSleep
	return a
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// buildProducts builds and swaps in a product generation with explicit vectors.
func buildProducts(t *testing.T, store *IndexStore, id uint64, items []domain.CatalogItem, vectors [][]float32) *Generation {
	t.Helper()
	require.Len(t, vectors, len(items))

	tokens := make([][]string, len(items))
	for i, it := range items {
		tokens[i] = strings.Fields(textproc.ProductText(it))
	}
	lexical := FitLexicalModel(tokens)

	entries := make([]domain.IndexedEntry, len(items))
	for i := range items {
		item := items[i]
		degraded := isZero(vectors[i])
		entries[i] = domain.IndexedEntry{
			Embedding: domain.EmbeddingVector{
				OwnerID:   item.Key(),
				OwnerType: domain.OwnerItem,
				Vector:    vectors[i],
				Degraded:  degraded,
			},
			Terms: lexical.Weights(tokens[i]),
			Item:  &item,
		}
	}

	gen, err := store.Build(context.Background(), BuildInput{
		ID:           id,
		ModelVersion: fmt.Sprintf("mock/%d", len(vectors[0])),
		Dimensions:   len(vectors[0]),
		Entries:      entries,
		Lexical:      lexical,
	})
	require.NoError(t, err)
	store.Swap(gen)
	return gen
}

func item(id, category int64, price float64) domain.CatalogItem {
	return domain.CatalogItem{
		ID:         id,
		Name:       "Produit " + domain.ItemKey(id),
		CategoryID: category,
		Price:      price,
		Active:     true,
	}
}

func ids[T domain.Recommendation | domain.SearchHit](results []T) []int64 {
	out := make([]int64, len(results))
	for i, r := range results {
		switch v := any(r).(type) {
		case domain.Recommendation:
			out[i] = v.ItemID
		case domain.SearchHit:
			out[i] = v.ItemID
		}
	}
	return out
}
