package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

type fixedPrompts map[string]string

func (p fixedPrompts) Load(name string) (string, error) {
	if s, ok := p[name]; ok {
		return s, nil
	}
	return "", errors.New("not found")
}

func (p fixedPrompts) Reload() {}

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLLMService(LLMConfig{BaseURL: srv.URL})
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})

	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultBaseURL, svc.api.BaseURL())
	assert.NoError(t, svc.Close())
}

func TestGenerateAnswer(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultLLMModel, req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Contains(t, req.Messages[1].Content, "Source 1:\nRetour sous 30 jours.")
		require.NotNil(t, req.Options)
		assert.Equal(t, 200, req.Options.NumPredict)

		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "  Vous avez 30 jours.\n"},
			Done:    true,
		})
	})

	answer, err := svc.GenerateAnswer(context.Background(), driven.AnswerRequest{
		Question:  "Combien de temps pour un retour ?",
		Sources:   []string{"Retour sous 30 jours."},
		MaxTokens: 200,
	})

	require.NoError(t, err)
	assert.Equal(t, "Vous avez 30 jours.", answer)
}

func TestGenerateAnswer_CustomSystemPrompt(t *testing.T) {
	var got chatRequest
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: "ok"}})
	})
	svc.SetPromptStore(fixedPrompts{driven.PromptAnswerSystem: "Be brief."})

	_, err := svc.GenerateAnswer(context.Background(), driven.AnswerRequest{Question: "q", Sources: []string{"s"}})

	require.NoError(t, err)
	assert.Equal(t, "Be brief.", got.Messages[0].Content)
	assert.Nil(t, got.Options)
}

func TestGenerateAnswer_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"model loading", http.StatusServiceUnavailable, "model is loading", true},
		{"model missing", http.StatusNotFound, `{"error":"model not found"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, tt.body, tt.status)
			})

			_, err := svc.GenerateAnswer(context.Background(), driven.AnswerRequest{Question: "q"})

			require.Error(t, err)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
			assert.Contains(t, err.Error(), tt.body)
		})
	}
}

func TestPing(t *testing.T) {
	svc := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"}]}`))
	})

	assert.NoError(t, svc.Ping(context.Background()))
}
