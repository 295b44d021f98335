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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/doctown/pkg/assembly"
)

// failedPrefix marks a summary that stands in for a failed generation.
const failedPrefix = "[Documentation generation failed: "

// DocumentedSymbol is the generated summary for one symbol.
type DocumentedSymbol struct {
	SymbolID   string `json:"symbol_id"`
	Summary    string `json:"summary"`
	TokensUsed int    `json:"tokens_used"`
}

// Failed reports whether the summary is a failure placeholder.
func (d DocumentedSymbol) Failed() bool {
	return strings.HasPrefix(d.Summary, failedPrefix)
}

// Documentation is the outcome of one Document call. Symbols follows the
// order of the input contexts.
type Documentation struct {
	Symbols      []DocumentedSymbol `json:"documented_symbols"`
	PromptTokens int                `json:"prompt_tokens"`
	OutputTokens int                `json:"output_tokens"`
	Warnings     []string           `json:"warnings,omitempty"`
	Duration     time.Duration      `json:"-"`
}

// TotalTokens is prompt plus output tokens.
func (d *Documentation) TotalTokens() int { return d.PromptTokens + d.OutputTokens }

// Summaries maps symbol id to summary, leaving out failure placeholders.
func (d *Documentation) Summaries() map[string]string {
	out := make(map[string]string, len(d.Symbols))
	for _, s := range d.Symbols {
		if !s.Failed() {
			out[s.SymbolID] = s.Summary
		}
	}
	return out
}

// Documenter writes short summaries for symbols through a chat Provider.
type Documenter struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

// NewDocumenter creates a Documenter. Zero fields of cfg take their defaults.
func NewDocumenter(provider Provider, cfg Config, logger *slog.Logger) *Documenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Documenter{provider: provider, cfg: cfg.withDefaults(), logger: logger}
}

// Provider returns the underlying chat provider.
func (d *Documenter) Provider() Provider { return d.provider }

// Document generates a summary per context with at most Concurrency chats in
// flight. A symbol whose chat fails gets a placeholder summary and a warning
// instead of failing the batch; only context cancellation aborts it.
func (d *Documenter) Document(ctx context.Context, contexts []assembly.SymbolContext) (*Documentation, error) {
	start := time.Now()
	out := &Documentation{Symbols: make([]DocumentedSymbol, len(contexts))}
	prompt := make([]int, len(contexts))
	output := make([]int, len(contexts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i := range contexts {
		g.Go(func() error {
			sym, in, o, err := d.documentOne(gctx, contexts[i])
			if err != nil {
				return err
			}
			out.Symbols[i], prompt[i], output[i] = sym, in, o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, sym := range out.Symbols {
		out.PromptTokens += prompt[i]
		out.OutputTokens += output[i]
		if sym.Failed() {
			out.Warnings = append(out.Warnings, "Failed to document "+sym.SymbolID)
		}
	}
	out.Duration = time.Since(start)

	d.logger.Info("llm.document.completed",
		"provider", d.provider.Name(),
		"symbols", len(contexts),
		"failed", len(out.Warnings),
		"tokens", out.TotalTokens(),
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

// documentOne returns an error only when ctx is done.
func (d *Documenter) documentOne(ctx context.Context, c assembly.SymbolContext) (DocumentedSymbol, int, int, error) {
	if err := ctx.Err(); err != nil {
		return DocumentedSymbol{}, 0, 0, err
	}
	if EstimateTokens(BuildPrompt(c, 0)) > d.cfg.MaxPromptTokens {
		d.logger.Warn("llm.prompt.truncated", "symbol", c.SymbolID, "max_tokens", d.cfg.MaxPromptTokens)
	}

	resp, err := d.provider.Chat(ctx, ChatRequest{
		Messages:    BuildMessages(c, d.cfg.MaxPromptTokens),
		Model:       d.cfg.Model,
		MaxTokens:   d.cfg.MaxTokens,
		Temperature: d.cfg.Temperature,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return DocumentedSymbol{}, 0, 0, ctxErr
		}
		recordChat(d.provider.Name(), "error", 0, 0)
		d.logger.Error("llm.document.failed", "symbol", c.SymbolID, "err", err)
		return DocumentedSymbol{SymbolID: c.SymbolID, Summary: failedSummary(err)}, 0, 0, nil
	}

	recordChat(d.provider.Name(), "ok", resp.PromptTokens, resp.OutputTokens)
	return DocumentedSymbol{
		SymbolID:   c.SymbolID,
		Summary:    strings.TrimSpace(resp.Message.Content),
		TokensUsed: resp.PromptTokens + resp.OutputTokens,
	}, resp.PromptTokens, resp.OutputTokens, nil
}

func failedSummary(err error) string {
	msg := err.Error()
	if r := []rune(msg); len(r) > 100 {
		msg = string(r[:100])
	}
	return fmt.Sprintf("%s%s]", failedPrefix, msg)
}
