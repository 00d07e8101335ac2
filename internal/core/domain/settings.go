package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies a backend for embeddings or answer generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderLocal is the in-process hashing embedder or the extractive answerer.
	AIProviderLocal AIProvider = "local"

	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or any compatible endpoint.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic API. Generation only.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsRemote returns true if calls leave the process.
func (p AIProvider) IsRemote() bool {
	return p != AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderLocal:
		return "Local (in-process)"
	case AIProviderOllama:
		return "Ollama (local server)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding backend configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string

	// Dimensions is the dense vector length.
	Dimensions int

	// Timeout bounds a single backend call.
	Timeout time.Duration

	// MaxAttempts bounds retries on upstream timeouts.
	MaxAttempts int

	// RequestsPerSecond throttles remote calls. Zero disables throttling.
	RequestsPerSecond float64

	// BatchSize is the number of texts sent per backend call.
	BatchSize int
}

// IsConfigured returns true if the embedding backend is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds answer generation backend configuration.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxAttempts int
	MaxTokens   int
	Temperature float32

	// Language is the language answers are written in.
	Language string
}

// IsConfigured returns true if a remote generator is set up.
// The local provider is always available and never counts as configured.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RecommendSettings tunes the recommendation engine.
type RecommendSettings struct {
	// OverFetch multiplies k when querying the index.
	OverFetch int

	// MMRLambda weighs relevance against redundancy. 1 ignores diversity.
	MMRLambda float64

	// MinSimilarity drops weaker neighbours.
	MinSimilarity float64
}

// SearchSettings tunes the search engine.
type SearchSettings struct {
	// SemanticWeight and LexicalWeight blend the two scores.
	SemanticWeight float64
	LexicalWeight  float64

	// OverFetch multiplies k when querying the index.
	OverFetch int

	// MinSimilarity drops candidates with a lower semantic score.
	MinSimilarity float64

	// MaxExpansions bounds how often the pool is re-queried with a larger k
	// when filters eliminate every candidate.
	MaxExpansions int
}

// AssistantSettings tunes the RAG engine.
type AssistantSettings struct {
	// TopN is the number of chunks retrieved per question.
	TopN int

	// MinSimilarity drops sources below this score.
	MinSimilarity float64

	// DirectAnswerScore is the score above which the extractive answerer
	// returns the best chunk verbatim.
	DirectAnswerScore float64

	// ExcerptLength caps citation excerpts in characters.
	ExcerptLength int

	// ChunkSize and ChunkOverlap are in words.
	ChunkSize    int
	ChunkOverlap int
}

// CacheSettings holds cache layer configuration.
type CacheSettings struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
}

// BuildSettings holds rebuild behaviour.
type BuildSettings struct {
	// MinInterval skips non-forced rebuilds of a younger generation.
	MinInterval time.Duration

	// MaxAttempts bounds retries of a failed scheduled rebuild.
	MaxAttempts int

	// RetryBackoff is the base delay between attempts.
	RetryBackoff time.Duration
}

// RetrievalSettings groups every tunable of the retrieval core.
type RetrievalSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Recommend RecommendSettings
	Search    SearchSettings
	Assistant AssistantSettings
	Cache     CacheSettings
	Build     BuildSettings
}

// DefaultRetrievalSettings returns the production defaults.
func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		Embedding: EmbeddingSettings{
			Provider:    AIProviderLocal,
			Model:       DefaultEmbeddingModels()[AIProviderLocal],
			Dimensions:  384,
			Timeout:     5 * time.Second,
			MaxAttempts: 3,
			BatchSize:   64,
		},
		LLM: LLMSettings{
			Provider:    AIProviderLocal,
			Timeout:     15 * time.Second,
			MaxAttempts: 2,
			MaxTokens:   500,
			Temperature: 0.3,
			Language:    "French",
		},
		Recommend: RecommendSettings{
			OverFetch:     3,
			MMRLambda:     0.7,
			MinSimilarity: 0.1,
		},
		Search: SearchSettings{
			SemanticWeight: 0.7,
			LexicalWeight:  0.3,
			OverFetch:      3,
			MinSimilarity:  0.1,
			MaxExpansions:  3,
		},
		Assistant: AssistantSettings{
			TopN:              DefaultAskTopN,
			MinSimilarity:     0.3,
			DirectAnswerScore: 0.7,
			ExcerptLength:     200,
			ChunkSize:         500,
			ChunkOverlap:      50,
		},
		Cache: CacheSettings{
			Enabled:    true,
			TTL:        time.Hour,
			MaxEntries: 10000,
		},
		Build: BuildSettings{
			MinInterval:  30 * time.Minute,
			MaxAttempts:  3,
			RetryBackoff: 2 * time.Second,
		},
	}
}

// Validate checks that weights and sizes are usable.
func (s RetrievalSettings) Validate() error {
	if s.Recommend.MMRLambda < 0 || s.Recommend.MMRLambda > 1 {
		return fmt.Errorf("%w: recommend.mmr_lambda must be within [0,1]", ErrValidation)
	}
	if s.Search.SemanticWeight < 0 || s.Search.LexicalWeight < 0 {
		return fmt.Errorf("%w: search weights must not be negative", ErrValidation)
	}
	if s.Search.SemanticWeight+s.Search.LexicalWeight == 0 {
		return fmt.Errorf("%w: search weights must not both be zero", ErrValidation)
	}
	if s.Recommend.OverFetch < 1 || s.Search.OverFetch < 1 {
		return fmt.Errorf("%w: over_fetch must be at least 1", ErrValidation)
	}
	if s.Assistant.ChunkSize <= 0 || s.Assistant.ChunkOverlap < 0 || s.Assistant.ChunkOverlap >= s.Assistant.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrValidation)
	}
	if s.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding.dimensions must be positive", ErrValidation)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{AIProviderLocal, AIProviderOllama, AIProviderOpenAI}
}

// AllLLMProviders returns providers that support answer generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{AIProviderLocal, AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "hashing-v1",
		AIProviderOllama: "all-minilm",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each generation provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:     "extractive",
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"all-minilm":             384,
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds document post-processor pipeline configuration.
// Processor configs are generic maps so new processors need no struct change.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration keyed by processor name.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor builds the document pipeline for the assistant settings.
func PipelineConfigFor(s AssistantSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "markdown"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": s.ChunkSize,
				"overlap":    s.ChunkOverlap,
			},
		},
	}
}
