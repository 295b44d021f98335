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

import "sort"

const (
	maxContextCalls    = 10
	maxContextCalledBy = 10
	maxContextImports  = 10
	maxContextRelated  = 3
)

// SymbolContext is the neighbourhood summary of one symbol that a
// documentation generator is prompted with.
type SymbolContext struct {
	SymbolID       string   `json:"symbol_id"`
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	Language       string   `json:"language"`
	FilePath       string   `json:"file_path"`
	Signature      string   `json:"signature,omitempty"`
	Calls          []string `json:"calls"`
	CalledBy       []string `json:"called_by"`
	Imports        []string `json:"imports"`
	RelatedSymbols []string `json:"related_symbols"`
	ClusterLabel   string   `json:"cluster_label,omitempty"`
	Centrality     float64  `json:"centrality"`
}

// BuildContexts returns one context per node, in node order.
//
// imports maps a symbol id to its own import list. labels maps a cluster id
// to its label; symbols in unknown clusters get no label.
func BuildContexts(g *Graph, imports map[string][]string, labels map[string]string) []SymbolContext {
	calls := make(map[string][]string)
	calledBy := make(map[string][]string)
	type link struct {
		id     string
		weight float64
	}
	related := make(map[string][]link)

	name := func(id string) string {
		n, _ := g.Node(id)
		return n.Name
	}
	for _, e := range g.Edges() {
		switch e.Kind {
		case EdgeCalls:
			calls[e.Source] = append(calls[e.Source], name(e.Target))
			calledBy[e.Target] = append(calledBy[e.Target], name(e.Source))
		case EdgeRelated:
			var w float64
			if e.Weight != nil {
				w = *e.Weight
			}
			related[e.Source] = append(related[e.Source], link{e.Target, w})
			related[e.Target] = append(related[e.Target], link{e.Source, w})
		}
	}

	out := make([]SymbolContext, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		links := related[n.ID]
		sort.SliceStable(links, func(i, j int) bool { return links[i].weight > links[j].weight })
		var names []string
		seen := make(map[string]bool, len(links))
		for _, l := range links {
			if seen[l.id] {
				continue
			}
			seen[l.id] = true
			names = append(names, name(l.id))
			if len(names) == maxContextRelated {
				break
			}
		}

		out = append(out, SymbolContext{
			SymbolID:       n.ID,
			Name:           n.Name,
			Kind:           n.Kind,
			Language:       n.Language,
			FilePath:       n.FilePath,
			Signature:      n.Signature,
			Calls:          truncate(calls[n.ID], maxContextCalls),
			CalledBy:       truncate(calledBy[n.ID], maxContextCalledBy),
			Imports:        truncate(imports[n.ID], maxContextImports),
			RelatedSymbols: truncate(names, maxContextRelated),
			ClusterLabel:   labels[n.ClusterID],
			Centrality:     n.Centrality,
		})
	}
	return out
}

// truncate copies at most n items and never returns nil, so that empty
// lists encode as [].
func truncate(items []string, n int) []string {
	out := make([]string, 0, min(len(items), n))
	return append(out, items[:min(len(items), n)]...)
}
