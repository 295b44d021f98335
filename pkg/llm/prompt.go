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
	"unicode/utf8"

	"github.com/kraklabs/doctown/pkg/assembly"
)

const systemPrompt = "You are a technical documentation expert. Generate concise, accurate documentation for code symbols."

var instructions = []string{
	"",
	"Write 1-2 sentences describing what this symbol does.",
	"Be concise and precise. Focus on purpose, not implementation.",
}

// EstimateTokens approximates the token count of s at four characters per
// token.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}

// truncateTokens cuts s to roughly limit tokens, ending it with "...".
func truncateTokens(s string, limit int) string {
	if EstimateTokens(s) <= limit {
		return s
	}
	keep := limit*4 - 3
	if keep <= 0 {
		return "..."
	}
	runes := []rune(s)
	if keep > len(runes) {
		keep = len(runes)
	}
	return string(runes[:keep]) + "..."
}

func joinFirst(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}

func header(c assembly.SymbolContext) []string {
	return []string{
		fmt.Sprintf("You are documenting a %s codebase.", c.Language),
		"",
		"Symbol: " + c.Name,
		"Kind: " + c.Kind,
		"File: " + c.FilePath,
	}
}

// relations renders the call graph lines, listing at most limit names each.
func relations(c assembly.SymbolContext, limit int, scale bool) []string {
	var lines []string
	if len(c.Calls) > 0 {
		lines = append(lines, "Calls: "+joinFirst(c.Calls, limit))
	}
	if len(c.CalledBy) > 0 {
		lines = append(lines, "Called by: "+joinFirst(c.CalledBy, limit))
	}
	if c.ClusterLabel != "" {
		lines = append(lines, "Related to: "+c.ClusterLabel)
	}
	importance := fmt.Sprintf("Importance: %.2f", c.Centrality)
	if scale {
		importance += " (0-1 scale)"
	}
	return append(lines, importance)
}

// BuildPrompt renders the user prompt for one symbol. When the estimate
// exceeds maxTokens the relation lists shrink to five entries and the
// signature is cut to whatever budget remains.
func BuildPrompt(c assembly.SymbolContext, maxTokens int) string {
	lines := header(c)
	lines = append(lines, "Signature: "+c.Signature)
	lines = append(lines, relations(c, 10, true)...)
	lines = append(lines, instructions...)
	prompt := strings.Join(lines, "\n")
	if maxTokens <= 0 || EstimateTokens(prompt) <= maxTokens {
		return prompt
	}

	meta := relations(c, 5, false)
	base := strings.Join(append(append(header(c), meta...), instructions...), "\n")
	available := maxTokens - EstimateTokens(base) - EstimateTokens("Signature: ") - 10

	signature := "..."
	if available > 0 {
		signature = truncateTokens(c.Signature, available)
	}
	lines = append(header(c), "Signature: "+signature)
	lines = append(lines, meta...)
	lines = append(lines, instructions...)
	return strings.Join(lines, "\n")
}

// BuildMessages returns the system and user turns for one symbol.
func BuildMessages(c assembly.SymbolContext, maxTokens int) []Message {
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPrompt(c, maxTokens)},
	}
}
