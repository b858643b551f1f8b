package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(serverURL string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    serverURL,
		Model:      "gpt-4o",
		ImageModel: "dall-e-3",
		Timeout:    5 * time.Second,
	})
}

func TestGenerate(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "generated text"}},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	got, err := client.Generate(context.Background(), Invocation{
		System:      "You are a writer.",
		Prompt:      "Write about harbors.",
		Temperature: 0.7,
		JSONMode:    true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "generated text" {
		t.Errorf("content = %q", got)
	}

	if captured.Model != "gpt-4o" {
		t.Errorf("model = %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", captured.Messages)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format = %+v", captured.ResponseFormat)
	}
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "auth_error"},
		})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), Invocation{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v, want the API error message", err)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), Invocation{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "no content") {
		t.Errorf("error = %v, want no-content error", err)
	}
}

func TestGenerateImage(t *testing.T) {
	var captured imageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"url": "https://img.example/1.png"}},
		})
	}))
	defer server.Close()

	url, err := newTestClient(server.URL).GenerateImage(context.Background(), ImageRequest{
		Prompt: "a harbor at dawn",
		Size:   "1792x1024",
		Style:  "vivid",
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if url != "https://img.example/1.png" {
		t.Errorf("url = %q", url)
	}
	if captured.Model != "dall-e-3" || captured.N != 1 || captured.Size != "1792x1024" {
		t.Errorf("request = %+v", captured)
	}
}

func TestGenerateImageEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "no image URL") {
		t.Errorf("error = %v, want no-URL error", err)
	}
}
