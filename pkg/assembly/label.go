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

package assembly

import (
	"sort"
	"strings"
	"unicode"
)

// Labeler names a cluster from the text of its members. Implementations
// must be deterministic and never return an empty string.
type Labeler interface {
	Label(texts []string) string
}

// LabelerFunc adapts a function to Labeler.
type LabelerFunc func(texts []string) string

// Label calls f.
func (f LabelerFunc) Label(texts []string) string { return f(texts) }

const (
	labelEmpty = "empty"
	labelMisc  = "misc"

	minTermLength   = 3
	relatedPrefix   = 4
	dominanceFactor = 2
)

var stopWords = toSet(
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
	"from", "as", "is", "are", "was", "were", "be", "been", "being", "have", "has", "had",
	"do", "does", "did", "will", "would", "could", "should", "may", "might", "can",
	"this", "that", "these", "those", "it", "its", "if", "then", "else", "when", "where",
	"why", "how", "all", "each", "every", "some", "any", "no", "not",
	"fn", "def", "func", "class", "struct", "impl", "trait", "enum", "type", "interface",
	"let", "var", "const", "static", "pub", "mod", "use", "import", "export", "package",
	"return", "self", "new", "get", "set", "add", "mut", "ref", "async", "await",
	"true", "false", "none", "nil", "null", "string", "int", "bool",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// TermCount is one ranked term.
type TermCount struct {
	Term  string
	Count int
}

// TFLabeler labels clusters by term frequency across member texts.
type TFLabeler struct{}

// NewTFLabeler returns the term-frequency labeler.
func NewTFLabeler() *TFLabeler { return &TFLabeler{} }

// Label returns "empty" for no members, "misc" when no usable term
// survives filtering, the top term when it dominates the runner-up (or the
// two are variants of one word), and "top-second" otherwise.
func (l *TFLabeler) Label(texts []string) string {
	if len(texts) == 0 {
		return labelEmpty
	}
	terms := l.Terms(texts)
	switch {
	case len(terms) == 0:
		return labelMisc
	case len(terms) == 1:
		return terms[0].Term
	}
	top, second := terms[0], terms[1]
	if top.Count >= dominanceFactor*second.Count || related(top.Term, second.Term) {
		return top.Term
	}
	return top.Term + "-" + second.Term
}

// Terms counts filtered terms across texts, ordered by count descending
// then term ascending.
func (l *TFLabeler) Terms(texts []string) []TermCount {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, tok := range tokenize(text) {
			if len(tok) < minTermLength {
				continue
			}
			if _, stop := stopWords[tok]; stop {
				continue
			}
			counts[tok]++
		}
	}
	out := make([]TermCount, 0, len(counts))
	for term, n := range counts {
		out = append(out, TermCount{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// tokenize splits on non-alphanumerics, then on lower-to-upper camelCase
// boundaries, and lowercases every piece.
func tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens = append(tokens, splitCamel(word)...)
	}
	return tokens
}

func splitCamel(word string) []string {
	var parts []string
	start := 0
	prevLower := false
	for i, r := range word {
		if unicode.IsUpper(r) && prevLower {
			parts = append(parts, strings.ToLower(word[start:i]))
			start = i
		}
		prevLower = unicode.IsLower(r)
	}
	return append(parts, strings.ToLower(word[start:]))
}

// related reports whether a and b look like forms of the same word.
func related(a, b string) bool {
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return true
	}
	if min(len(a), len(b)) < relatedPrefix {
		return false
	}
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n >= relatedPrefix
}
