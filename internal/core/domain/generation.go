package domain

import "time"

// OwnerType says what an embedding vector represents.
type OwnerType string

// Embedding owners.
const (
	OwnerItem  OwnerType = "item"
	OwnerChunk OwnerType = "chunk"
)

// EmbeddingVector is the dense representation of one catalog item or chunk.
// Vectors are computed once per generation and never patched.
type EmbeddingVector struct {
	OwnerID      string
	OwnerType    OwnerType
	Vector       []float32
	GenerationID uint64

	// Degraded marks a zero vector produced for empty or malformed text.
	// Degraded entries are stored but never ranked.
	Degraded bool
}

// IndexGeneration describes one complete, immutable build of a corpus index.
type IndexGeneration struct {
	// ID increases monotonically per artifact.
	ID uint64 `json:"generation_id"`

	// Corpus is the content the generation covers.
	Corpus CorpusType `json:"corpus_type"`

	// VectorCount is the number of rankable (non-degraded) vectors.
	VectorCount int `json:"vector_count"`

	// DegradedCount is the number of entries excluded from ranking.
	DegradedCount int `json:"degraded_count"`

	// Dimension is the dense vector length.
	Dimension int `json:"dimension"`

	// ModelVersion identifies the embedding model the vectors came from.
	ModelVersion string `json:"model_version"`

	// BuiltAt is when the build finished.
	BuiltAt time.Time `json:"built_at"`

	// Checksum covers the content of the generation, not its id or timestamp.
	Checksum string `json:"checksum"`
}

// RowCount is the total number of entries, degraded included.
func (g IndexGeneration) RowCount() int {
	return g.VectorCount + g.DegradedCount
}

// IndexedEntry is one row of a generation: its vector plus the metadata
// engines need at query time. Exactly one of Item or Chunk is set.
type IndexedEntry struct {
	Embedding EmbeddingVector

	// Terms holds the lexical weights of the entry text.
	Terms map[string]float64

	Item  *CatalogItem
	Chunk *DocumentChunk
}

// ID returns the entry identifier.
func (e IndexedEntry) ID() string {
	return e.Embedding.OwnerID
}

// IndexArtifact is the persisted payload of a generation, addressed by
// (artifact name, generation id).
type IndexArtifact struct {
	Generation IndexGeneration
	Entries    []IndexedEntry

	// DocumentFrequency counts, per term, the entries containing it.
	DocumentFrequency map[string]int
}
