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

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	}, nil, nil)
}

func TestGenerateSendsJSONFormatImageAndOptions(t *testing.T) {
	var payload generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":" {\"ok\":true} "}`))
	}))
	defer server.Close()

	temp := float32(0.2)
	text, err := New(server.URL, "llava", 0, testExecutor()).Generate(context.Background(), domain.GenerationRequest{
		Prompt:      "describe",
		JSON:        true,
		Temperature: &temp,
		MaxTokens:   256,
		Attachment:  &domain.Attachment{Name: "a.png", MIMEType: "image/png", Data: []byte{1, 2, 3}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != `{"ok":true}` {
		t.Fatalf("unexpected text %q", text)
	}
	if payload.Model != "llava" || payload.Format != "json" || payload.Stream || len(payload.Images) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Options["num_predict"] != float64(256) {
		t.Fatalf("unexpected options %v", payload.Options)
	}
}

func TestGenerateRetriesGatewayErrorsAndReportsBody(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "llama3", 0, testExecutor()).Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestGenerateDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown model", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := New(server.URL, "nope", 0, testExecutor()).Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestGenerateReportsOllamaErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llama9\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "llama9", 0, testExecutor()).Generate(context.Background(), domain.GenerationRequest{Prompt: "hi"})
	if err == nil || !strings.Contains(err.Error(), "status 404: model \"llama9\" not found") {
		t.Fatalf("expected decoded error message, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("missing model must not be temporary: %v", err)
	}
}
