package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// Generation is one complete, immutable build of a corpus index.
// Engines capture a *Generation once per request and read only from it.
type Generation struct {
	info    domain.IndexGeneration
	index   driven.VectorIndex
	entries []domain.IndexedEntry
	byID    map[string]int
	lexical *LexicalModel
}

// ID returns the generation id.
func (g *Generation) ID() uint64 { return g.info.ID }

// Info returns the generation descriptor.
func (g *Generation) Info() domain.IndexGeneration { return g.info }

// Lexical returns the lexical model fitted on this generation.
func (g *Generation) Lexical() *LexicalModel { return g.lexical }

// Len returns the number of entries, degraded included.
func (g *Generation) Len() int { return len(g.entries) }

// Entry returns the entry with the given id.
func (g *Generation) Entry(id string) (*domain.IndexedEntry, bool) {
	i, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return &g.entries[i], true
}

// Vector returns the normalised vector of a rankable entry.
func (g *Generation) Vector(id string) ([]float32, bool) {
	return g.index.Vector(id)
}

// Query returns at most k entries ordered by cosine similarity to vector,
// ties broken by ascending id. Degraded entries are never returned.
func (g *Generation) Query(ctx context.Context, vector []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || isZero(vector) {
		return nil, nil
	}
	if len(vector) != g.info.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d",
			domain.ErrValidation, len(vector), g.info.Dimension)
	}
	hits, err := g.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("query generation %d: %w", g.info.ID, err)
	}
	return hits, nil
}

// Artifact returns the persistable payload of the generation.
func (g *Generation) Artifact() *domain.IndexArtifact {
	return &domain.IndexArtifact{
		Generation:        g.info,
		Entries:           g.entries,
		DocumentFrequency: g.lexical.DocumentFrequency(),
	}
}

// BuildInput is everything needed to build one generation.
type BuildInput struct {
	ID           uint64
	ModelVersion string
	Dimensions   int
	Entries      []domain.IndexedEntry
	Lexical      *LexicalModel
}

// IndexStore holds the live generation of one corpus and builds new ones.
// Build never touches the live generation; Swap replaces it atomically.
type IndexStore struct {
	corpus  domain.CorpusType
	builder driven.VectorIndexBuilder
	current atomic.Pointer[Generation]
	now     func() time.Time
}

// NewIndexStore creates an empty store for a corpus.
func NewIndexStore(corpus domain.CorpusType, builder driven.VectorIndexBuilder) *IndexStore {
	return &IndexStore{corpus: corpus, builder: builder, now: time.Now}
}

// Corpus returns the corpus the store serves.
func (s *IndexStore) Corpus() domain.CorpusType { return s.corpus }

// Current returns the live generation, or nil before the first swap.
func (s *IndexStore) Current() *Generation { return s.current.Load() }

// Swap makes g live and returns the previous generation.
func (s *IndexStore) Swap(g *Generation) *Generation {
	prev := s.current.Swap(g)
	if g != nil {
		logger.Info("%s: generation %d live (%d vectors)", s.corpus, g.ID(), g.info.VectorCount)
	}
	return prev
}

// Build creates a fresh generation sized to the full corpus. The result is
// not live until it is passed to Swap.
func (s *IndexStore) Build(ctx context.Context, in BuildInput) (*Generation, error) {
	defer logger.Timed(fmt.Sprintf("build %s generation %d", s.corpus, in.ID))()

	entries := slices.Clone(in.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return domain.CompareIDs(entries[i].ID(), entries[j].ID()) < 0
	})
	for i := range entries {
		if i > 0 && entries[i].ID() == entries[i-1].ID() {
			return nil, fmt.Errorf("%w: duplicate entry id %q", domain.ErrValidation, entries[i].ID())
		}
		if !entries[i].Embedding.Degraded && len(entries[i].Embedding.Vector) != in.Dimensions {
			return nil, fmt.Errorf("%w: entry %q has dimension %d, expected %d",
				domain.ErrValidation, entries[i].ID(), len(entries[i].Embedding.Vector), in.Dimensions)
		}
		stampGeneration(&entries[i], in.ID)
	}

	lexical := in.Lexical
	if lexical == nil {
		lexical = NewLexicalModel(nil, 0)
	}

	info := domain.IndexGeneration{
		ID:           in.ID,
		Corpus:       s.corpus,
		Dimension:    in.Dimensions,
		ModelVersion: in.ModelVersion,
		BuiltAt:      s.now().UTC(),
		Checksum:     Checksum(in.ModelVersion, in.Dimensions, entries),
	}
	return s.assemble(ctx, info, entries, lexical)
}

// Load restores a persisted generation after verifying its checksum.
func (s *IndexStore) Load(ctx context.Context, art *domain.IndexArtifact) (*Generation, error) {
	if art == nil {
		return nil, fmt.Errorf("%w: nil artifact", domain.ErrIntegrityViolation)
	}
	if art.Generation.Corpus != s.corpus {
		return nil, fmt.Errorf("%w: artifact corpus %q, store corpus %q",
			domain.ErrIntegrityViolation, art.Generation.Corpus, s.corpus)
	}
	sum := Checksum(art.Generation.ModelVersion, art.Generation.Dimension, art.Entries)
	if sum != art.Generation.Checksum {
		return nil, fmt.Errorf("%w: generation %d checksum %s, recorded %s",
			domain.ErrIntegrityViolation, art.Generation.ID, sum, art.Generation.Checksum)
	}
	docs := art.Generation.RowCount()
	return s.assemble(ctx, art.Generation, art.Entries, NewLexicalModel(art.DocumentFrequency, docs))
}

func (s *IndexStore) assemble(ctx context.Context, info domain.IndexGeneration, entries []domain.IndexedEntry, lexical *LexicalModel) (*Generation, error) {
	byID := make(map[string]int, len(entries))
	ids := make([]string, 0, len(entries))
	vectors := make([][]float32, 0, len(entries))
	degraded := 0
	for i, e := range entries {
		byID[e.ID()] = i
		if e.Embedding.Degraded {
			degraded++
			continue
		}
		ids = append(ids, e.ID())
		vectors = append(vectors, e.Embedding.Vector)
	}

	index, err := s.builder.Build(ctx, ids, vectors)
	if err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}

	info.VectorCount = len(ids)
	info.DegradedCount = degraded
	if degraded > 0 {
		logger.Warn("%s generation %d: %d degraded entries excluded from ranking", s.corpus, info.ID, degraded)
	}

	return &Generation{
		info:    info,
		index:   index,
		entries: entries,
		byID:    byID,
		lexical: lexical,
	}, nil
}

func stampGeneration(e *domain.IndexedEntry, id uint64) {
	e.Embedding.GenerationID = id
	if e.Chunk != nil {
		chunk := *e.Chunk
		chunk.GenerationID = id
		e.Chunk = &chunk
	}
}

// Checksum hashes the content of a generation: model version, dimension and
// every entry in order. Generation ids and timestamps are excluded so that
// identical inputs always produce identical checksums.
func Checksum(modelVersion string, dims int, entries []domain.IndexedEntry) string {
	h := sha256.New()
	writeString(h, modelVersion)
	writeUint(h, uint64(dims))
	writeUint(h, uint64(len(entries)))
	for _, e := range entries {
		writeString(h, e.ID())
		writeString(h, string(e.Embedding.OwnerType))
		writeBool(h, e.Embedding.Degraded)
		writeUint(h, uint64(len(e.Embedding.Vector)))
		for _, v := range e.Embedding.Vector {
			writeUint(h, uint64(math.Float32bits(v)))
		}

		terms := make([]string, 0, len(e.Terms))
		for t := range e.Terms {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		writeUint(h, uint64(len(terms)))
		for _, t := range terms {
			writeString(h, t)
			writeUint(h, math.Float64bits(e.Terms[t]))
		}

		if it := e.Item; it != nil {
			writeString(h, "item")
			writeUint(h, uint64(it.ID))
			writeString(h, it.Name)
			writeString(h, it.Description)
			writeUint(h, uint64(it.CategoryID))
			writeString(h, it.Category)
			writeUint(h, math.Float64bits(it.Price))
			writeBool(h, it.Active)
			writeStringMap(h, it.Attributes)
		}
		if c := e.Chunk; c != nil {
			writeString(h, "chunk")
			writeString(h, c.ID)
			writeString(h, c.SourceDocumentID)
			writeUint(h, uint64(c.Index))
			writeString(h, c.Text)
			writeString(h, c.Metadata.Type)
			writeString(h, c.Metadata.Category)
			writeString(h, c.Metadata.Title)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeBool(h hash.Hash, b bool) {
	if b {
		writeUint(h, 1)
		return
	}
	writeUint(h, 0)
}

func writeStringMap(h hash.Hash, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeUint(h, uint64(len(keys)))
	for _, k := range keys {
		writeString(h, k)
		writeString(h, m[k])
	}
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
