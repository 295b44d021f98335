// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNoChoices is returned when a chat endpoint answers without a message.
var ErrNoChoices = errors.New("llm returned no choices")

// Provider answers chat completions.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier.
	Name() string
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// ChatResponse is a chat completion.
type ChatResponse struct {
	Message      Message       `json:"message"`
	Model        string        `json:"model"`
	PromptTokens int           `json:"prompt_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// retryable reports whether err is worth another attempt: rate limits,
// server errors and transport failures.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// NewProvider creates the provider named by cfg.Provider: "openai" (any
// OpenAI-compatible endpoint), "ollama" or "mock".
//
// Environment variables fill settings left empty in cfg:
//   - OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL
//   - OLLAMA_HOST, OLLAMA_MODEL
func NewProvider(cfg Config) (Provider, error) {
	cfg = cfg.withDefaults()
	switch strings.ToLower(cfg.Provider) {
	case "openai", "openai-compatible":
		return newOpenAIProvider(cfg), nil
	case "ollama":
		return newOllamaProvider(cfg), nil
	case "mock":
		return &MockProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: openai, ollama, mock)", cfg.Provider)
	}
}

// httpProvider holds what the HTTP-backed providers share.
type httpProvider struct {
	name       string
	baseURL    string
	model      string
	header     http.Header
	client     *http.Client
	maxRetries int
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// post sends payload to path and decodes the answer into out, retrying
// transient failures with exponential backoff from one second.
func (p *httpProvider) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", p.name, err)
	}

	var lastErr error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Second << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		lastErr = p.once(ctx, path, body, out)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (p *httpProvider) once(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.header {
		req.Header[k] = v
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s chat: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Provider: p.name, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", p.name, err)
	}
	return nil
}

// =============================================================================
// OPENAI-COMPATIBLE PROVIDER
// =============================================================================

type openaiProvider struct{ httpProvider }

func newOpenAIProvider(cfg Config) *openaiProvider {
	p := &openaiProvider{httpProvider{
		name:       "openai",
		baseURL:    strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, os.Getenv("OPENAI_BASE_URL"), "https://api.openai.com/v1"), "/"),
		model:      firstNonEmpty(cfg.Model, os.Getenv("OPENAI_MODEL"), DefaultOpenAIModel),
		header:     http.Header{},
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}}
	if key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY")); key != "" {
		p.header.Set("Authorization", "Bearer "+key)
	}
	return p
}

func (p *openaiProvider) Name() string { return p.name }

func (p *openaiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	payload := map[string]any{
		"model":    firstNonEmpty(req.Model, p.model),
		"messages": req.Messages,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}

	var result struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	start := time.Now()
	if err := p.post(ctx, "/chat/completions", payload, &result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, ErrNoChoices
	}
	return &ChatResponse{
		Message:      result.Choices[0].Message,
		Model:        result.Model,
		PromptTokens: result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		Duration:     time.Since(start),
	}, nil
}

// =============================================================================
// OLLAMA PROVIDER
// =============================================================================

type ollamaProvider struct{ httpProvider }

func newOllamaProvider(cfg Config) *ollamaProvider {
	return &ollamaProvider{httpProvider{
		name:       "ollama",
		baseURL:    strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, os.Getenv("OLLAMA_HOST"), "http://localhost:11434"), "/"),
		model:      firstNonEmpty(cfg.Model, os.Getenv("OLLAMA_MODEL")),
		header:     http.Header{},
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}}
}

func (p *ollamaProvider) Name() string { return p.name }

func (p *ollamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := firstNonEmpty(req.Model, p.model)
	if model == "" {
		return nil, fmt.Errorf("ollama: model not specified (set llm.model or OLLAMA_MODEL)")
	}
	options := map[string]any{}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	payload := map[string]any{
		"model":    model,
		"messages": req.Messages,
		"stream":   false,
		"options":  options,
	}

	var result struct {
		Message         Message `json:"message"`
		Model           string  `json:"model"`
		PromptEvalCount int     `json:"prompt_eval_count"`
		EvalCount       int     `json:"eval_count"`
	}
	start := time.Now()
	if err := p.post(ctx, "/api/chat", payload, &result); err != nil {
		return nil, err
	}
	return &ChatResponse{
		Message:      result.Message,
		Model:        result.Model,
		PromptTokens: result.PromptEvalCount,
		OutputTokens: result.EvalCount,
		Duration:     time.Since(start),
	}, nil
}

// =============================================================================
// MOCK PROVIDER
// =============================================================================

// MockProvider answers every chat with a fixed sentence built from the last
// message's "Symbol:" and "Kind:" lines. Set Err to make it fail.
type MockProvider struct {
	Err error
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var prompt string
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}
	name, kind := promptField(prompt, "Symbol:"), promptField(prompt, "Kind:")
	content := fmt.Sprintf("The %s %s.", kind, name)
	return &ChatResponse{
		Message:      Message{Role: "assistant", Content: content},
		Model:        "mock",
		PromptTokens: EstimateTokens(prompt),
		OutputTokens: EstimateTokens(content),
	}, nil
}

func promptField(prompt, key string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if v, ok := strings.CutPrefix(line, key); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
