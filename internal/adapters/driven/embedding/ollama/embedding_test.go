package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

func newTestService(t *testing.T, dims int, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEmbeddingService(Config{BaseURL: srv.URL, Dimensions: dims})
}

func reply(vectors ...[]float32) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vectors})
	}
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(Config{})

	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.Equal(t, DefaultBaseURL, svc.api.BaseURL())
	assert.NoError(t, svc.Close())
}

func TestEmbedBatch_OneRequestPerBatch(t *testing.T) {
	calls := 0
	svc := newTestService(t, 3, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, []string{"casque audio", "chargeur"}, req.Input)

		reply([]float32{1, 0, 0}, []float32{0, 1, 0})(w, r)
	})

	vectors, err := svc.EmbedBatch(context.Background(), []string{"casque audio", "chargeur"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vectors)
	assert.Equal(t, 1, calls)
}

func TestEmbed_Single(t *testing.T) {
	svc := newTestService(t, 2, reply([]float32{0.5, 0.5}))

	v, err := svc.Embed(context.Background(), "souris")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, v)
}

func TestEmbedBatch_EmptyInputSkipsServer(t *testing.T) {
	svc := newTestService(t, 3, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})

	vectors, err := svc.EmbedBatch(context.Background(), nil)

	assert.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedBatch_RejectsBadReplies(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"wrong dimension", reply([]float32{1, 2, 3, 4}), "4 dimensions"},
		{"wrong count", reply([]float32{1, 2, 3}, []float32{3, 2, 1}), "got 2 embeddings for 1 texts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, 3, tt.handler)

			_, err := svc.Embed(context.Background(), "x")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, domain.IsRetryable(err))
		})
	}
}

func TestEmbedBatch_OverloadIsRetryable(t *testing.T) {
	svc := newTestService(t, 3, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	})

	_, err := svc.Embed(context.Background(), "x")

	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
}

func TestPing_RequiresPulledModel(t *testing.T) {
	var pulled atomic.Bool
	pulled.Store(true)
	svc := newTestService(t, 3, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		if pulled.Load() {
			_, _ = w.Write([]byte(`{"models":[{"name":"all-minilm:latest"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	})

	assert.NoError(t, svc.Ping(context.Background()))

	pulled.Store(false)
	assert.ErrorContains(t, svc.Ping(context.Background()), "ollama pull all-minilm")
}
