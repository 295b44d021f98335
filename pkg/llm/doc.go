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

// Package llm generates natural language documentation for code symbols.
//
// A Documenter takes the symbol contexts produced by assembly (name, kind,
// signature, callers, callees, cluster label and centrality), renders one
// prompt per symbol and asks a chat Provider for a one or two sentence
// summary. The summaries end up in the docpack as each node's
// documentation summary.
//
// # Supported Providers
//
//   - openai: OpenAI and any OpenAI-compatible endpoint (POST /chat/completions)
//   - ollama: local models through /api/chat, no API key required
//   - mock: deterministic answers for tests and offline runs
//
// # Quick Start
//
//	provider, err := llm.NewProvider(llm.Config{Provider: "openai"})
//	if err != nil {
//	    return err
//	}
//	doc := llm.NewDocumenter(provider, llm.DefaultConfig(), logger)
//	out, err := doc.Document(ctx, resp.SymbolContexts)
//	if err != nil {
//	    return err
//	}
//	for id, summary := range out.Summaries() {
//	    fmt.Println(id, summary)
//	}
//
// # Failures
//
// A failed chat never fails the batch. The symbol gets the placeholder
// "[Documentation generation failed: <reason>]" and a warning is added to
// the result. Rate limits and server errors are retried with exponential
// backoff before giving up. Only context cancellation aborts Document.
//
// # Prompt Budget
//
// Token counts are estimated at four characters per token. A prompt whose
// estimate exceeds MaxPromptTokens is rebuilt with shorter relation lists
// and a truncated signature.
package llm
