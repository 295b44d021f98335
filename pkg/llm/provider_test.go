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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProvider_Types(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"mock", "mock"},
		{"ollama", "ollama"},
		{"openai", "openai"},
		{"openai-compatible", "openai"},
		{"OpenAI", "openai"},
	}
	for _, tt := range tests {
		p, err := NewProvider(Config{Provider: tt.provider, Model: "m"})
		if err != nil {
			t.Fatalf("NewProvider(%q) error = %v", tt.provider, err)
		}
		if p.Name() != tt.want {
			t.Errorf("NewProvider(%q).Name() = %q, want %q", tt.provider, p.Name(), tt.want)
		}
	}
}

func TestNewProvider_UnknownType(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "anthropic"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestMockProvider_Chat(t *testing.T) {
	p := &MockProvider{}
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "sys"},
			{Role: "user", Content: "Symbol: parse\nKind: function\nFile: a.go"},
		},
	})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}
	if resp.Message.Content != "The function parse." {
		t.Errorf("unexpected content: %q", resp.Message.Content)
	}
	if resp.PromptTokens == 0 || resp.OutputTokens == 0 {
		t.Errorf("expected token estimates, got %d/%d", resp.PromptTokens, resp.OutputTokens)
	}

	p.Err = errors.New("down")
	if _, err := p.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Error("expected configured error")
	}
}

func TestOpenAIProvider_Chat_WithMockServer(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{
				"message": {"role": "assistant", "content": "OpenAI response"},
				"finish_reason": "stop"
			}],
			"model": "gpt-4o-mini",
			"usage": {"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30}
		}`))
	}))
	defer server.Close()

	p, err := NewProvider(Config{Provider: "openai", BaseURL: server.URL + "/", APIKey: "test-key", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("NewProvider error = %v", err)
	}

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:    []Message{{Role: "user", Content: "Test"}},
		MaxTokens:   150,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}
	if resp.Message.Content != "OpenAI response" {
		t.Errorf("unexpected content: %q", resp.Message.Content)
	}
	if resp.PromptTokens != 20 || resp.OutputTokens != 10 {
		t.Errorf("unexpected usage: %d/%d", resp.PromptTokens, resp.OutputTokens)
	}
	if got["model"] != "gpt-4o-mini" || got["max_tokens"] != float64(150) || got["temperature"] != 0.3 {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	p, _ := NewProvider(Config{Provider: "openai", BaseURL: server.URL, APIKey: "k"})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
}

func TestOpenAIProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer server.Close()

	p, _ := NewProvider(Config{Provider: "openai", BaseURL: server.URL, APIKey: "k", MaxRetries: 2})
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}
	if resp.Message.Content != "ok" || calls.Load() != 2 {
		t.Errorf("content %q after %d calls", resp.Message.Content, calls.Load())
	}
}

func TestOpenAIProvider_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	p, _ := NewProvider(Config{Provider: "openai", BaseURL: server.URL, APIKey: "k", MaxRetries: 3})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if !strings.Contains(se.Body, "bad key") {
		t.Errorf("unexpected body: %q", se.Body)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestOllamaProvider_Chat_WithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "llama3" || body.Stream {
			t.Errorf("unexpected request: %+v", body)
		}
		w.Write([]byte(`{
			"message": {"role": "assistant", "content": "Ollama response"},
			"model": "llama3",
			"prompt_eval_count": 12,
			"eval_count": 5
		}`))
	}))
	defer server.Close()

	p, err := NewProvider(Config{Provider: "ollama", BaseURL: server.URL, Model: "llama3", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewProvider error = %v", err)
	}
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "Test"}}})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}
	if resp.Message.Content != "Ollama response" || resp.PromptTokens != 12 || resp.OutputTokens != 5 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []Config{
		{Provider: "gemini"},
		{Provider: "openai", Temperature: 3},
		{Provider: "openai", Concurrency: -1},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{Model: "x"}.withDefaults()
	if c.Provider != "openai" || c.MaxTokens != 150 || c.Temperature != 0.3 || c.Concurrency != 10 || c.MaxPromptTokens != 2000 {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.Model != "x" {
		t.Errorf("model overwritten: %q", c.Model)
	}
}
