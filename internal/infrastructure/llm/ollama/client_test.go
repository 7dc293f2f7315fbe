package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/document-intake/internal/core/domain"
	"github.com/kirillkom/document-intake/internal/infrastructure/resilience"
)

func TestEmbedSendsModelAndPreservesOrder(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&requests, 1)
		var payload struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Model != DefaultEmbedModel {
			t.Errorf("expected model %q, got %q", DefaultEmbedModel, payload.Model)
		}
		embeddings := make([][]float32, len(payload.Input))
		for i, text := range payload.Input {
			embeddings[i] = []float32{float32(len(text))}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, ""))
	embedder.batchSize = 2
	vectors, err := embedder.Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 3 || vectors[0][0] != 1 || vectors[2][0] != 3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Fatalf("expected 2 batched requests, got %d", requests)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadRequest)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "all-minilm"))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestEmbedRetriesAndMarksTemporary(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Policy{
		Attempts: 2,
		Backoff:  resilience.Backoff{Initial: time.Millisecond, Max: time.Millisecond},
	})
	embedder := NewEmbedder(NewWithOptions(server.URL, "", Options{ResilienceExecutor: exec}))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if atomic.LoadInt32(&requests) != 2 {
		t.Fatalf("expected 2 attempts, got %d", requests)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	_, err := NewEmbedder(New(server.URL, "")).Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestEmbedMissingModelIsNotRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"all-minilm\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Policy{
		Attempts: 3,
		Backoff:  resilience.Backoff{Initial: time.Millisecond, Max: time.Millisecond},
	})
	_, err := NewEmbedder(NewWithOptions(server.URL, "", Options{ResilienceExecutor: exec})).Embed(context.Background(), []string{"hello"})
	if !domain.IsKind(err, domain.ErrRemoteService) {
		t.Fatalf("expected remote service error, got %v", err)
	}
	if !strings.Contains(err.Error(), "ollama pull") {
		t.Fatalf("expected pull hint, got %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}
