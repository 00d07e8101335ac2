// Package anthropic writes assistant answers with the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/llm"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/ratelimit"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

var (
	_ driven.LLMService       = (*LLMService)(nil)
	_ driven.PromptStoreAware = (*LLMService)(nil)
)

// Defaults for the hosted API.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-haiku-latest"
	DefaultTimeout = 120 * time.Second
)

const (
	// The API rejects requests without max_tokens.
	defaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
	service          = "anthropic"
)

// Config configures the generator. APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Limiter throttles requests. Nil disables throttling.
	Limiter *ratelimit.RateLimiter
}

// LLMService calls /v1/messages.
type LLMService struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *ratelimit.RateLimiter
	prompts driven.PromptStore
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// apiError is the body of a non-2xx reply.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewLLMService creates an Anthropic generator.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &LLMService{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		limiter: cfg.Limiter,
	}, nil
}

// GenerateAnswer sends the rendered prompts and joins the text blocks of the reply.
func (s *LLMService) GenerateAnswer(ctx context.Context, ar driven.AnswerRequest) (string, error) {
	system, user := llm.Render(s.prompts, ar)
	req := messagesRequest{
		Model:       s.model,
		System:      system,
		Messages:    []message{{Role: "user", Content: user}},
		MaxTokens:   ar.MaxTokens,
		Temperature: ar.Temperature,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	var resp messagesResponse
	if err := s.call(ctx, http.MethodPost, "/v1/messages", req, &resp); err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	answer := strings.TrimSpace(text.String())
	if answer == "" {
		return "", errors.New("anthropic: reply has no text")
	}
	if resp.StopReason == "max_tokens" {
		logger.Debug("anthropic: answer cut at %d tokens", req.MaxTokens)
	}
	return answer, nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string {
	return s.model
}

// SetPromptStore overrides the built-in prompts.
func (s *LLMService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Ping lists the models, which checks the key without generating anything.
func (s *LLMService) Ping(ctx context.Context) error {
	var models json.RawMessage
	return s.call(ctx, http.MethodGet, "/v1/models", nil, &models)
}

// Close is a no-op.
func (s *LLMService) Close() error {
	return nil
}

func (s *LLMService) call(ctx context.Context, method, path string, in, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}

	var reader io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", service, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", service, path, ratelimit.Wrap(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read %s: %w", service, path, ratelimit.Wrap(err))
	}
	if err := s.limiter.CheckResponse(service, resp, data); err != nil {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Type != "" {
			return fmt.Errorf("%w (%s)", err, apiErr.Error.Type)
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", service, path, err)
	}
	return nil
}
