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

package docpack

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Graph is graph.json: node ids, edges and summary metrics.
type Graph struct {
	Nodes   []string     `json:"nodes"`
	Edges   []Edge       `json:"edges"`
	Metrics GraphMetrics `json:"metrics"`
}

type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

type GraphMetrics struct {
	Density   float64 `json:"density"`
	AvgDegree float64 `json:"avg_degree"`
}

// NewGraph builds a Graph and computes its metrics. Density is
// E / (V * (V-1)) clamped to 1, as parallel edges of different kinds are
// allowed. Average degree is 2E / V.
func NewGraph(nodes []string, edges []Edge) Graph {
	if nodes == nil {
		nodes = []string{}
	}
	if edges == nil {
		edges = []Edge{}
	}
	g := Graph{Nodes: nodes, Edges: edges}
	n, e := float64(len(nodes)), float64(len(edges))
	if len(nodes) > 1 {
		g.Metrics.Density = min(e/(n*(n-1)), 1)
	}
	if len(nodes) > 0 {
		g.Metrics.AvgDegree = 2 * e / n
	}
	return g
}

// Nodes is nodes.json.
type Nodes struct {
	Symbols []Symbol `json:"symbols"`
}

// Symbol is one documented symbol.
type Symbol struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Kind          string        `json:"kind"`
	Language      string        `json:"language"`
	FilePath      string        `json:"file_path"`
	ByteRange     [2]int        `json:"byte_range"`
	Signature     string        `json:"signature,omitempty"`
	Calls         []string      `json:"calls"`
	CalledBy      []string      `json:"called_by"`
	Imports       []string      `json:"imports"`
	ClusterID     string        `json:"cluster_id"`
	Centrality    float64       `json:"centrality"`
	Documentation Documentation `json:"documentation"`
}

type Documentation struct {
	Summary string `json:"summary"`
	Details string `json:"details,omitempty"`
}

// NewNodes sorts symbols by id and normalises nil lists to empty ones.
func NewNodes(symbols []Symbol) Nodes {
	out := make([]Symbol, len(symbols))
	copy(out, symbols)
	for i := range out {
		out[i].Calls = orEmpty(out[i].Calls)
		out[i].CalledBy = orEmpty(out[i].CalledBy)
		out[i].Imports = orEmpty(out[i].Imports)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return Nodes{Symbols: out}
}

// Clusters is clusters.json.
type Clusters struct {
	Clusters []Cluster `json:"clusters"`
}

type Cluster struct {
	ClusterID   string `json:"cluster_id"`
	Label       string `json:"label"`
	MemberCount int    `json:"member_count"`
}

// NewClusters sorts clusters by id.
func NewClusters(clusters []Cluster) Clusters {
	out := make([]Cluster, len(clusters))
	copy(out, clusters)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return Clusters{Clusters: out}
}

// SourceMap is source_map.json: which chunks each file was cut into and
// which symbols each chunk covers.
type SourceMap struct {
	Files []SourceFile `json:"files"`
}

type SourceFile struct {
	FilePath string           `json:"file_path"`
	Language string           `json:"language"`
	Chunks   []SourceMapChunk `json:"chunks"`
}

type SourceMapChunk struct {
	ChunkID   string   `json:"chunk_id"`
	ByteRange [2]int   `json:"byte_range"`
	SymbolIDs []string `json:"symbol_ids"`
}

// NewSourceMap sorts files by path.
func NewSourceMap(files []SourceFile) SourceMap {
	out := make([]SourceFile, len(files))
	copy(out, files)
	for i := range out {
		chunks := make([]SourceMapChunk, len(out[i].Chunks))
		copy(chunks, out[i].Chunks)
		for j := range chunks {
			chunks[j].SymbolIDs = orEmpty(chunks[j].SymbolIDs)
		}
		out[i].Chunks = chunks
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return SourceMap{Files: out}
}

// SymbolContexts is symbol_contexts.json.
type SymbolContexts struct {
	Contexts []SymbolContext `json:"contexts"`
}

// SymbolContext is the neighbourhood of one symbol as produced by assembly.
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

// Context returns the context for symbolID.
func (s *SymbolContexts) Context(symbolID string) (SymbolContext, bool) {
	for _, c := range s.Contexts {
		if c.SymbolID == symbolID {
			return c, true
		}
	}
	return SymbolContext{}, false
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// marshalDocument renders v as two-space indented JSON without HTML
// escaping and without a trailing newline.
func marshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
