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
	"fmt"
	"strings"
	"time"
)

// DefaultOpenAIModel is used when neither the config nor OPENAI_MODEL names one.
const DefaultOpenAIModel = "gpt-4o-mini"

// Config configures documentation generation.
type Config struct {
	Provider    string        `yaml:"provider"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`

	// Concurrency bounds in-flight chat requests.
	Concurrency int `yaml:"concurrency"`

	// MaxPromptTokens is the estimated prompt size above which the
	// signature is truncated.
	MaxPromptTokens int `yaml:"max_prompt_tokens"`
}

// DefaultConfig returns the generation defaults.
func DefaultConfig() Config {
	return Config{
		Provider:        "openai",
		Timeout:         60 * time.Second,
		MaxRetries:      3,
		MaxTokens:       150,
		Temperature:     0.3,
		Concurrency:     10,
		MaxPromptTokens: 2000,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = d.Temperature
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxPromptTokens <= 0 {
		c.MaxPromptTokens = d.MaxPromptTokens
	}
	return c
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case "", "openai", "openai-compatible", "ollama", "mock":
	default:
		return fmt.Errorf("llm.provider %q is not one of openai, ollama, mock", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm.temperature %.2f out of range [0, 2]", c.Temperature)
	}
	if c.Concurrency < 0 || c.MaxTokens < 0 || c.MaxPromptTokens < 0 || c.MaxRetries < 0 {
		return fmt.Errorf("llm limits must not be negative")
	}
	return nil
}
