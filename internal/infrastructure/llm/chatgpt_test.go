package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ZipPicks/internal/config"
)

func testLLMConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Endpoint:       endpoint,
		Model:          "gpt-4o-mini",
		APIKey:         "test-key",
		TimeoutSeconds: 5,
	}
}

func TestDraftReturnsFirstChoice(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "**1. Bella Vista**"}},
			},
		})
	}))
	defer server.Close()

	client := NewChatClient(testLLMConfig(server.URL))
	out, err := client.Draft(context.Background(), "compose a list")
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if out != "**1. Bella Vista**" {
		t.Fatalf("unexpected draft: %q", out)
	}

	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected model: %v", gotBody["model"])
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
}

func TestDraftSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	client := NewChatClient(testLLMConfig(server.URL))
	_, err := client.Draft(context.Background(), "prompt")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected API error with body, got %v", err)
	}
}

func TestDraftRejectsEmptyChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewChatClient(testLLMConfig(server.URL))
	if _, err := client.Draft(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestDraftRequiresConfiguration(t *testing.T) {
	t.Parallel()

	client := NewChatClient(config.LLMConfig{})
	if _, err := client.Draft(context.Background(), "prompt"); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
