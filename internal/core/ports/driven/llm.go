package driven

import "context"

// LLMService produces answer text grounded in retrieved sources.
// This is an optional service - when nil, the assistant answers extractively.
//
// Implementations include:
//   - OpenAI (gpt-4o-mini) or any compatible endpoint
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// GenerateAnswer writes an answer to the question using only the sources.
	GenerateAnswer(ctx context.Context, req AnswerRequest) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// AnswerRequest is the input of a grounded generation call.
type AnswerRequest struct {
	// Question is the user question.
	Question string

	// Sources are the retrieved texts, best first.
	Sources []string

	// Context carries caller supplied hints (page, locale, cart).
	Context map[string]string

	// Language is the language the answer must be written in.
	Language string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float32
}
