package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onelab-hq/onelab-server/internal/tools"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("missing api key accepted")
	}
}

func TestNewDefaults(t *testing.T) {
	inv, err := New(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inv.baseURL != defaultBaseURL {
		t.Fatalf("baseURL = %q", inv.baseURL)
	}
	if inv.model != defaultModel {
		t.Fatalf("model = %q", inv.model)
	}
}

func TestInvokeDecodesToolOutput(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		resp := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"role":    "assistant",
						"content": `{"title":"Q3 Roadmap","phases":[]}`,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	inv, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc, err := inv.Invoke(context.Background(), tools.Roadmap, map[string]any{
		"productDescription": "a collaborative planning tool",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if doc["title"] != "Q3 Roadmap" {
		t.Fatalf("doc = %v", doc)
	}

	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotPayload["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v", gotPayload["model"])
	}
	rf, _ := gotPayload["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Fatalf("response_format = %v", gotPayload["response_format"])
	}
}

func TestInvokeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error","code":"429"}}`))
	}))
	defer srv.Close()

	inv, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := inv.Invoke(context.Background(), tools.Roadmap, map[string]any{
		"productDescription": "a collaborative planning tool",
	}); err == nil {
		t.Fatal("upstream error surfaced as success")
	}
}

func TestInvokeNonJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": "not json"}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	inv, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := inv.Invoke(context.Background(), tools.Roadmap, map[string]any{
		"productDescription": "a collaborative planning tool",
	}); err == nil {
		t.Fatal("non-JSON content surfaced as success")
	}
}
