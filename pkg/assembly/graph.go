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
	"math"
	"sort"
)

// EdgeKind classifies a graph edge.
type EdgeKind string

const (
	EdgeCalls   EdgeKind = "calls"
	EdgeImports EdgeKind = "imports"
	EdgeRelated EdgeKind = "related"
)

const (
	// DefaultSimilarityThreshold is the lowest cosine similarity that
	// produces a related edge.
	DefaultSimilarityThreshold = 0.7
	// DefaultSimilarityTopK caps related edges per symbol.
	DefaultSimilarityTopK = 5

	// Unclustered is the cluster id of symbols outside every cluster.
	Unclustered = "unclustered"
)

// Node is one symbol in the graph.
type Node struct {
	ID         string
	Name       string
	Kind       string
	Language   string
	FilePath   string
	Signature  string
	ClusterID  string
	Centrality float64
}

// Metadata returns the descriptive fields as a flat map.
func (n Node) Metadata() map[string]string {
	m := map[string]string{
		"name":      n.Name,
		"kind":      n.Kind,
		"language":  n.Language,
		"file_path": n.FilePath,
	}
	if n.Signature != "" {
		m["signature"] = n.Signature
	}
	return m
}

// Edge is a directed, typed edge. Weight is set for related edges only.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Weight *float64 `json:"weight,omitempty"`
}

// Graph is a directed multigraph of symbols. Nodes keep insertion order.
type Graph struct {
	nodes []Node
	index map[string]int
	edges []Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode inserts n. It reports false if a node with the same id exists.
func (g *Graph) AddNode(n Node) bool {
	if _, ok := g.index[n.ID]; ok {
		return false
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return true
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Has reports whether id is a node.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Nodes returns the nodes in insertion order. The slice is shared.
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns the edges in insertion order. The slice is shared.
func (g *Graph) Edges() []Edge { return g.edges }

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// SetCluster assigns id to a cluster.
func (g *Graph) SetCluster(id, clusterID string) {
	if i, ok := g.index[id]; ok {
		g.nodes[i].ClusterID = clusterID
	}
}

// AddEdge appends e if both endpoints exist and it is not a self loop.
func (g *Graph) AddEdge(e Edge) bool {
	if e.Source == e.Target || !g.Has(e.Source) || !g.Has(e.Target) {
		return false
	}
	g.edges = append(g.edges, e)
	return true
}

// AddCallEdges adds a calls edge from each caller to every resolved target
// present in the graph. Callers are visited in node order.
func (g *Graph) AddCallEdges(calls map[string][]string) int {
	return g.addLinks(calls, EdgeCalls)
}

// AddImportEdges adds an imports edge from each importer to every imported
// item present in the graph as a node id. Items naming no node add nothing.
func (g *Graph) AddImportEdges(imports map[string][]string) int {
	return g.addLinks(imports, EdgeImports)
}

func (g *Graph) addLinks(links map[string][]string, kind EdgeKind) int {
	added := 0
	for _, n := range g.nodes {
		for _, target := range links[n.ID] {
			if g.AddEdge(Edge{Source: n.ID, Target: target, Kind: kind}) {
				added++
			}
		}
	}
	return added
}

// AddSimilarityEdges links each embedded node to up to topK other embedded
// nodes whose cosine similarity is at least threshold, strongest first.
// Nodes are visited in id order and each direction is added independently,
// so a strong pair produces both A->B and B->A.
func (g *Graph) AddSimilarityEdges(embeddings map[string][]float32, threshold float64, topK int) int {
	if topK <= 0 {
		return 0
	}
	ids := make([]string, 0, len(embeddings))
	for id := range embeddings {
		if g.Has(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	type candidate struct {
		id  string
		sim float64
	}
	added := 0
	for _, a := range ids {
		var cands []candidate
		for _, b := range ids {
			if a == b {
				continue
			}
			if sim := cosine(embeddings[a], embeddings[b]); sim >= threshold {
				cands = append(cands, candidate{id: b, sim: sim})
			}
		}
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].sim > cands[j].sim })
		for _, c := range cands[:min(topK, len(cands))] {
			w := c.sim
			if g.AddEdge(Edge{Source: a, Target: c.id, Kind: EdgeRelated, Weight: &w}) {
				added++
			}
		}
	}
	return added
}

// EdgeCounts tallies edges by kind.
func (g *Graph) EdgeCounts() map[EdgeKind]int {
	counts := make(map[EdgeKind]int, 3)
	for _, e := range g.edges {
		counts[e.Kind]++
	}
	return counts
}

// Density is E / (V * (V-1)), or 0 for fewer than two nodes. Parallel
// edges of different kinds can push the ratio past 1, so it is clamped.
func (g *Graph) Density() float64 {
	n := len(g.nodes)
	if n < 2 {
		return 0
	}
	return math.Min(1, float64(len(g.edges))/float64(n*(n-1)))
}

// AvgDegree is 2E / V, or 0 for an empty graph.
func (g *Graph) AvgDegree() float64 {
	if len(g.nodes) == 0 {
		return 0
	}
	return 2 * float64(len(g.edges)) / float64(len(g.nodes))
}

// DegreeCentrality returns (in+out) / (2*(V-1)) per node, clamped to [0, 1].
// Every node is 0 when the graph has at most one node.
func (g *Graph) DegreeCentrality() map[string]float64 {
	out := make(map[string]float64, len(g.nodes))
	for _, n := range g.nodes {
		out[n.ID] = 0
	}
	if len(g.nodes) <= 1 {
		return out
	}
	degree := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		degree[e.Source]++
		degree[e.Target]++
	}
	denom := 2 * float64(len(g.nodes)-1)
	for id, d := range degree {
		out[id] = math.Min(1, float64(d)/denom)
	}
	return out
}

// ApplyCentrality stores DegreeCentrality on every node.
func (g *Graph) ApplyCentrality() {
	c := g.DegreeCentrality()
	for i := range g.nodes {
		g.nodes[i].Centrality = c[g.nodes[i].ID]
	}
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
