// Package ollama writes assistant answers with a chat model served by Ollama.
package ollama

import (
	"context"
	"strings"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/llm"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/ollamaapi"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/ratelimit"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

var (
	_ driven.LLMService       = (*LLMService)(nil)
	_ driven.PromptStoreAware = (*LLMService)(nil)
)

// Defaults for a local chat model. Generation is slow on CPU, hence the long timeout.
const (
	DefaultBaseURL    = ollamaapi.DefaultBaseURL
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig configures the generator. Zero values take the defaults.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// Limiter throttles requests. Nil disables throttling.
	Limiter *ratelimit.RateLimiter
}

// LLMService calls /api/chat without streaming.
type LLMService struct {
	api     *ollamaapi.Client
	model   string
	prompts driven.PromptStore
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// NewLLMService creates an Ollama generator.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMService{
		api:   ollamaapi.New(cfg.BaseURL, cfg.Timeout, cfg.Limiter),
		model: cfg.Model,
	}
}

// GenerateAnswer renders the prompts and returns the trimmed reply.
func (s *LLMService) GenerateAnswer(ctx context.Context, ar driven.AnswerRequest) (string, error) {
	system, user := llm.Render(s.prompts, ar)
	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	if ar.MaxTokens > 0 || ar.Temperature > 0 {
		req.Options = &chatOptions{NumPredict: ar.MaxTokens, Temperature: ar.Temperature}
	}

	var resp chatResponse
	if err := s.api.Post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string {
	return s.model
}

// SetPromptStore overrides the built-in prompts.
func (s *LLMService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Ping checks that the server answers and the model is pulled.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx, s.model)
}

// Close is a no-op.
func (s *LLMService) Close() error {
	return nil
}
