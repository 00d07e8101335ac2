package domain

import "fmt"

// CorpusType identifies an independently indexed body of content.
type CorpusType string

// Available corpora.
const (
	// CorpusProducts is the product catalog.
	CorpusProducts CorpusType = "products"

	// CorpusDocuments is the knowledge base used by the assistant.
	CorpusDocuments CorpusType = "documents"
)

// Artifact names registered in the manifest.
const (
	ArtifactProductIndex   = "products_index"
	ArtifactDocumentIndex  = "documents_index"
	ArtifactEmbeddingModel = "embedding_model"
)

// IsValid returns true if the corpus is recognised.
func (c CorpusType) IsValid() bool {
	return c == CorpusProducts || c == CorpusDocuments
}

// Artifact returns the manifest artifact name of the corpus index.
func (c CorpusType) Artifact() string {
	switch c {
	case CorpusProducts:
		return ArtifactProductIndex
	case CorpusDocuments:
		return ArtifactDocumentIndex
	default:
		return ""
	}
}

// String returns the string representation.
func (c CorpusType) String() string {
	return string(c)
}

// CorpusForArtifact resolves the corpus an index artifact belongs to.
func CorpusForArtifact(name string) (CorpusType, error) {
	switch name {
	case ArtifactProductIndex, string(CorpusProducts):
		return CorpusProducts, nil
	case ArtifactDocumentIndex, string(CorpusDocuments):
		return CorpusDocuments, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownArtifact, name)
	}
}

// IndexArtifacts lists every index artifact in build order.
func IndexArtifacts() []string {
	return []string{ArtifactProductIndex, ArtifactDocumentIndex}
}
