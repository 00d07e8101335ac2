// Package ollamaapi is the small slice of the Ollama REST API used by the
// embedding and answer adapters: JSON calls through a shared rate limiter
// and the list of pulled models.
package ollamaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/ratelimit"
)

// DefaultBaseURL is where a local Ollama listens.
const DefaultBaseURL = "http://localhost:11434"

const service = "ollama"

// Client calls one Ollama server.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *ratelimit.RateLimiter
}

// New creates a client. An empty baseURL means DefaultBaseURL. A nil limiter
// disables throttling.
func New(baseURL string, timeout time.Duration, limiter *ratelimit.RateLimiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: limiter,
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends in as JSON to path and decodes the reply into out. Overload and
// timeout replies surface as domain.ErrUpstreamTimeout.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode %s: %w", service, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// Models lists the names of the pulled models, tags included ("llama3.2:latest").
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", service, err)
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.do(req, &tags); err != nil {
		return nil, err
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// Ping checks that the server answers and that model has been pulled.
// An empty model only checks the server.
func (c *Client) Ping(ctx context.Context, model string) error {
	names, err := c.Models(ctx)
	if err != nil {
		return err
	}
	if model == "" || HasModel(names, model) {
		return nil
	}
	return fmt.Errorf("%s: model %q is not pulled, run 'ollama pull %s'", service, model, model)
}

// HasModel reports whether model is among names. A model without a tag
// matches its ":latest" variant.
func HasModel(names []string, model string) bool {
	for _, n := range names {
		if n == model || (!strings.Contains(model, ":") && n == model+":latest") {
			return true
		}
	}
	return false
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", service, req.URL.Path, ratelimit.Wrap(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read %s: %w", service, req.URL.Path, ratelimit.Wrap(err))
	}
	if err := c.limiter.CheckResponse(service, resp, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", service, req.URL.Path, err)
	}
	return nil
}
