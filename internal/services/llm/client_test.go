package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mailreel/internal/services"
)

func completionServer(t *testing.T, content string, check func(*http.Request, chatCompletionRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(r, req)
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestClientGenerate(t *testing.T) {
	server := completionServer(t, "  Your boss moved the meeting!  ", func(r *http.Request, req chatCompletionRequest) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.Header.Get("X-Title") != "mailreel" {
			t.Errorf("expected X-Title header")
		}
		if req.Model != "demo-model" || req.MaxTokens != 50 {
			t.Errorf("unexpected request: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "From: boss" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
	})
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Title: "mailreel", MaxTokens: 50})
	got, err := client.Generate(context.Background(), "be brief", "From: boss")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "Your boss moved the meeting!" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestClientGenerateRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{Model: "demo"})
	_, err := client.Generate(context.Background(), "sys", "user")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		status    int
		marker    error
		retryable bool
	}{
		{http.StatusTooManyRequests, services.ErrTransient, true},
		{http.StatusBadGateway, services.ErrTransient, true},
		{http.StatusUnauthorized, services.ErrConfiguration, false},
		{http.StatusBadRequest, services.ErrValidation, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "2")
				http.Error(w, `{"error":"nope"}`, tt.status)
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
			_, err := client.Generate(context.Background(), "sys", "user")
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if services.IsRetryable(err) != tt.retryable {
				t.Fatalf("retryable mismatch for %d: %v", tt.status, err)
			}
			if d, ok := services.RetryAfter(err); !ok || d != 2*time.Second {
				t.Fatalf("expected retry-after hint, got %v %v", d, ok)
			}
		})
	}
}

func TestClientEmptyContentIsTransient(t *testing.T) {
	server := completionServer(t, "   ", nil)
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, err := client.Generate(context.Background(), "sys", "user")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error for empty content, got %v", err)
	}
}

func TestClientDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo"})
	_, err := client.Generate(ctx, "sys", "user")
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable timeout, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected seconds parse: %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("expected negative value to be rejected")
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Fatal("expected empty value to be rejected")
	}
}
