package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/wayfind/wayfind/internal/llm"
)

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header: got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type: got %q", got)
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model: got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "what street am I on?" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		res := Response{
			ID: "chatcmpl-1",
			Choices: []Choice{
				{Message: Message{Role: "assistant", Content: "You are on Villa Street."}, FinishReason: "stop"},
			},
			Usage: Usage{PromptTokens: 40, CompletionTokens: 8, TotalTokens: 48},
		}
		_ = json.NewEncoder(w).Encode(res)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-key")

	res, err := client.Chat(context.Background(), Request{
		Model: "test-model",
		Messages: []Message{
			{Role: "system", Content: "You are a navigation assistant."},
			{Role: "user", Content: "what street am I on?"},
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if len(res.Choices) != 1 {
		t.Fatalf("unexpected choice count: got %v want 1", len(res.Choices))
	}
	if got := res.Choices[0].Message.Content; got != "You are on Villa Street." {
		t.Errorf("unexpected answer: got %q", got)
	}
	if res.Usage.TotalTokens != 48 {
		t.Errorf("unexpected token usage: got %v want 48", res.Usage.TotalTokens)
	}
}

func TestChatNoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("authorization header set without an API key")
		}
		_ = json.NewEncoder(w).Encode(Response{})
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "")

	if _, err := client.Chat(context.Background(), Request{}); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
}

func TestChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "test-key")

	_, err := client.Chat(context.Background(), Request{Model: "test-model"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Errorf("error does not carry the status: %v", err)
	}
}
