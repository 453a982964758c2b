// Package openai implements generator.Invoker against the OpenAI chat
// completions API, forcing JSON-object replies so tool outputs decode
// directly into documents.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/onelab-hq/onelab-server/internal/generator"
	"github.com/onelab-hq/onelab-server/internal/tools"
)

var _ generator.Invoker = (*Invoker)(nil)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Invoker calls the OpenAI API.
type Invoker struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the OpenAI invoker.
type Config struct {
	APIKey         string
	BaseURL        string // optional, defaults to https://api.openai.com/v1
	Model          string // optional, defaults to gpt-4o-mini
	RequestTimeout time.Duration
}

// New creates an OpenAI invoker.
func New(cfg Config) (*Invoker, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Invoker{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name identifies the invoker in logs.
func (inv *Invoker) Name() string { return "openai" }

// Invoke builds the tool prompt and runs one chat completion.
func (inv *Invoker) Invoke(ctx context.Context, tool tools.Type, input map[string]any) (map[string]any, error) {
	prompt, err := tools.BuildPrompt(tool, input)
	if err != nil {
		return nil, fmt.Errorf("openai: build prompt: %w", err)
	}

	payload := map[string]any{
		"model": inv.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are an experienced product strategist. Reply with a single JSON object and nothing else."},
			{"role": "user", "content": prompt},
		},
		"temperature":     0.7,
		"response_format": map[string]string{"type": "json_object"},
		"stream":          false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", inv.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+inv.apiKey)

	resp, err := inv.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai: %s (type=%s, code=%s)", errResp.Error.Message, errResp.Error.Type, errResp.Error.Code)
		}
		return nil, fmt.Errorf("openai: http %d: %s", resp.StatusCode, string(respBody))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("openai: unmarshal response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("openai: empty completion")
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &doc); err != nil {
		return nil, fmt.Errorf("openai: decode tool output: %w", err)
	}
	return doc, nil
}
