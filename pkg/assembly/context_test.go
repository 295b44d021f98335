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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContexts_Neighbourhood(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "sym_main", Name: "main", Kind: "function", Language: "rust", FilePath: "src/main.rs", ClusterID: "cluster_0"})
	g.AddNode(Node{ID: "sym_helper", Name: "helper", Kind: "function", Language: "rust", FilePath: "src/main.rs", ClusterID: Unclustered})
	g.AddEdge(Edge{Source: "sym_main", Target: "sym_helper", Kind: EdgeCalls})
	g.ApplyCentrality()

	ctxs := BuildContexts(g,
		map[string][]string{"sym_main": {"std::io"}},
		map[string]string{"cluster_0": "entry"})
	require.Len(t, ctxs, 2)

	main := ctxs[0]
	assert.Equal(t, "sym_main", main.SymbolID)
	assert.Equal(t, []string{"helper"}, main.Calls)
	assert.Empty(t, main.CalledBy)
	assert.NotNil(t, main.CalledBy)
	assert.Equal(t, []string{"std::io"}, main.Imports)
	assert.Equal(t, "entry", main.ClusterLabel)
	assert.InDelta(t, 0.5, main.Centrality, 1e-9)

	helper := ctxs[1]
	assert.Equal(t, []string{"main"}, helper.CalledBy)
	assert.Empty(t, helper.ClusterLabel)
}

func TestBuildContexts_Truncation(t *testing.T) {
	g := NewGraph()
	g.AddNode(Node{ID: "sym_hub", Name: "hub"})
	var imports []string
	for i := range 15 {
		id := fmt.Sprintf("sym_n%02d", i)
		g.AddNode(Node{ID: id, Name: fmt.Sprintf("n%02d", i)})
		g.AddEdge(Edge{Source: "sym_hub", Target: id, Kind: EdgeCalls})
		g.AddEdge(Edge{Source: id, Target: "sym_hub", Kind: EdgeCalls})
		w := float64(i) / 100
		g.AddEdge(Edge{Source: "sym_hub", Target: id, Kind: EdgeRelated, Weight: &w})
		imports = append(imports, fmt.Sprintf("mod%d", i))
	}

	ctxs := BuildContexts(g, map[string][]string{"sym_hub": imports}, nil)
	hub := ctxs[0]
	assert.Len(t, hub.Calls, 10)
	assert.Equal(t, "n00", hub.Calls[0])
	assert.Len(t, hub.CalledBy, 10)
	assert.Len(t, hub.Imports, 10)
	assert.Equal(t, []string{"n14", "n13", "n12"}, hub.RelatedSymbols)

	for _, c := range ctxs {
		assert.LessOrEqual(t, len(c.Calls), 10)
		assert.LessOrEqual(t, len(c.CalledBy), 10)
		assert.LessOrEqual(t, len(c.Imports), 10)
		assert.LessOrEqual(t, len(c.RelatedSymbols), 3)
	}
}

func TestBuildContexts_RelatedBothDirectionsCountOnce(t *testing.T) {
	g := graphWith("sym_a", "sym_b", "sym_c")
	emb := map[string][]float32{
		"sym_a": {1, 0},
		"sym_b": {0.95, 0.05},
		"sym_c": {0.8, 0.2},
	}
	g.AddSimilarityEdges(emb, 0.7, 5)

	ctxs := BuildContexts(g, nil, nil)
	assert.Equal(t, []string{"b", "c"}, ctxs[0].RelatedSymbols)
}
