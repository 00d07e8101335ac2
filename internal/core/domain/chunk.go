package domain

// SourceDocument is a knowledge base document before chunking.
type SourceDocument struct {
	// ID is stable across rebuilds (file name or catalog key).
	ID string `yaml:"id" json:"id"`

	// Title is shown in citations.
	Title string `yaml:"title" json:"title"`

	// Type classifies the document (policy, guide, faq, ...).
	Type string `yaml:"type" json:"type"`

	// Category groups documents by topic.
	Category string `yaml:"category" json:"category"`

	// Version is the editorial version of the document.
	Version string `yaml:"version" json:"version,omitempty"`

	// Content is the full text.
	Content string `yaml:"content" json:"content"`
}

// ChunkMetadata is carried by every chunk for citation rendering.
type ChunkMetadata struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Title    string `json:"title"`
}

// DocumentChunk is a bounded, overlapping window of a source document.
type DocumentChunk struct {
	// ID is derived from the source document id and the window text,
	// so it only changes when the text changes.
	ID string `json:"chunk_id"`

	SourceDocumentID string        `json:"source_document_id"`
	Index            int           `json:"index"`
	Text             string        `json:"text"`
	Metadata         ChunkMetadata `json:"metadata"`
	GenerationID     uint64        `json:"generation_id"`
}
