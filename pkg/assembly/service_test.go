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
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/doctown/pkg/events"
)

func newTestService(opts ...Option) *Service {
	return NewService(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func tinyRustRequest() *Request {
	return &Request{
		JobID:   "job_tiny_rust",
		RepoURL: "https://github.com/acme/tiny",
		GitRef:  "main",
		Chunks: []ChunkInput{
			{ChunkID: "chunk_main_0001", Vector: []float32{1, 0, 0}, Content: "fn main(){ helper(); }"},
			{ChunkID: "chunk_help_0001", Vector: []float32{0.9, 0.1, 0}, Content: "fn helper(){}"},
		},
		Symbols: []SymbolInput{
			{
				SymbolID: "sym_src/main.rs::main", Name: "main", Kind: "function", Language: "rust",
				FilePath: "src/main.rs", Signature: "fn main()",
				ChunkIDs: []string{"chunk_main_0001"}, Calls: []string{"sym_src/main.rs::helper"},
			},
			{
				SymbolID: "sym_src/main.rs::helper", Name: "helper", Kind: "function", Language: "rust",
				FilePath: "src/main.rs", Signature: "fn helper()",
				ChunkIDs: []string{"chunk_help_0001"},
			},
		},
	}
}

func TestService_TinyRustRepo(t *testing.T) {
	resp, err := newTestService().Assemble(context.Background(), tinyRustRequest())
	require.NoError(t, err)

	assert.Equal(t, "job_tiny_rust", resp.JobID)
	assert.Len(t, resp.Clusters, 2)
	assert.Len(t, resp.Nodes, 2)

	var calls []Edge
	for _, e := range resp.Edges {
		if e.Kind == EdgeCalls {
			calls = append(calls, e)
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, "sym_src/main.rs::main", calls[0].Source)
	assert.Equal(t, "sym_src/main.rs::helper", calls[0].Target)

	members := 0
	for _, c := range resp.Clusters {
		members += len(c.Members)
		assert.NotEmpty(t, c.Label)
	}
	assert.Equal(t, 2, members)
	for _, n := range resp.Nodes {
		assert.NotEqual(t, Unclustered, n.ClusterID)
		assert.Equal(t, "function", n.Metadata["kind"])
	}

	require.Len(t, resp.SymbolContexts, 2)
	assert.Equal(t, []string{"helper"}, resp.SymbolContexts[0].Calls)
	assert.Equal(t, []string{"main"}, resp.SymbolContexts[1].CalledBy)

	assert.Equal(t, Stats{
		ClusterCount: 2,
		NodeCount:    2,
		EdgeCount:    len(resp.Edges),
		DurationMS:   resp.Stats.DurationMS,
	}, resp.Stats)
}

func TestService_Events(t *testing.T) {
	resp, err := newTestService().Assemble(context.Background(), tinyRustRequest())
	require.NoError(t, err)

	var types []events.EventType
	var last uint64
	for _, env := range resp.Events {
		require.NoError(t, env.Validate())
		assert.Greater(t, env.Sequence, last)
		last = env.Sequence
		assert.Equal(t, "job_tiny_rust", env.Context.JobID)
		types = append(types, env.EventType)
	}
	assert.Equal(t, []events.EventType{
		events.AssemblyStarted,
		events.AssemblyClusterCreated,
		events.AssemblyClusterCreated,
		events.AssemblyGraphCompleted,
		events.AssemblyCompleted,
	}, types)

	done := resp.Events[len(resp.Events)-1]
	assert.Equal(t, events.StatusSuccess, done.Status)
	payload, ok := done.Payload.(events.AssemblyCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, 2, payload.NodeCount)

	graph, ok := resp.Events[3].Payload.(events.GraphCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, 1, graph.EdgeTypes.Calls)
	assert.Equal(t, graph.EdgeCount, graph.EdgeTypes.Calls+graph.EdgeTypes.Imports+graph.EdgeTypes.Related)
}

func TestService_Deterministic(t *testing.T) {
	svc := newTestService()
	first, err := svc.Assemble(context.Background(), tinyRustRequest())
	require.NoError(t, err)
	second, err := svc.Assemble(context.Background(), tinyRustRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Clusters, second.Clusters)
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
	assert.Equal(t, first.SymbolContexts, second.SymbolContexts)
}

func TestService_UnclusteredSymbol(t *testing.T) {
	req := tinyRustRequest()
	req.Symbols = append(req.Symbols, SymbolInput{
		SymbolID: "sym_src/lib.rs::orphan", Name: "orphan", Kind: "function", FilePath: "src/lib.rs",
		ChunkIDs: []string{"chunk_missing_01"},
	})

	resp, err := newTestService().Assemble(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Nodes, 3)
	assert.Equal(t, Unclustered, resp.Nodes[2].ClusterID)
	assert.Zero(t, resp.Nodes[2].Centrality)
}

func TestService_DuplicateSymbolID(t *testing.T) {
	req := tinyRustRequest()
	dup := req.Symbols[1]
	dup.Signature = "fn helper(x: i32)"
	req.Symbols = append(req.Symbols, dup)

	resp, err := newTestService().Assemble(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Nodes, 2)
	assert.Equal(t, "fn helper()", resp.Nodes[1].Metadata["signature"])

	members := 0
	for _, c := range resp.Clusters {
		members += len(c.Members)
		seen := make(map[string]bool)
		for _, m := range c.Members {
			assert.False(t, seen[m], "member %s listed twice in %s", m, c.ClusterID)
			seen[m] = true
		}
	}
	assert.Equal(t, len(resp.Nodes), members)

	counted := 0
	for _, env := range resp.Events {
		if p, ok := env.Payload.(events.ClusterCreatedPayload); ok {
			counted += p.MemberCount
		}
	}
	assert.Equal(t, 2, counted)
	assert.Len(t, resp.SymbolContexts, 2)
}

func TestService_CustomLabeler(t *testing.T) {
	svc := newTestService(WithLabeler(LabelerFunc(func([]string) string { return "unlabeled" })))
	resp, err := svc.Assemble(context.Background(), tinyRustRequest())
	require.NoError(t, err)
	for _, c := range resp.Clusters {
		assert.Equal(t, "unlabeled", c.Label)
	}
	assert.Equal(t, "unlabeled", resp.SymbolContexts[0].ClusterLabel)
}

func TestService_Errors(t *testing.T) {
	svc := newTestService()

	req := tinyRustRequest()
	req.Chunks = nil
	_, err := svc.Assemble(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyInput)

	req = tinyRustRequest()
	req.JobID = "bad id"
	_, err = svc.Assemble(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req = tinyRustRequest()
	req.Chunks[1].Vector = []float32{1}
	_, err = svc.Assemble(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Assemble(ctx, tinyRustRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponse_JSONShape(t *testing.T) {
	resp, err := newTestService().Assemble(context.Background(), tinyRustRequest())
	require.NoError(t, err)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"job_id", "clusters", "nodes", "edges", "symbol_contexts", "stats", "events"} {
		assert.Contains(t, decoded, key)
	}
	edge := decoded["edges"].([]any)[0].(map[string]any)
	assert.Contains(t, edge, "source")
	assert.Contains(t, edge, "target")
	assert.Contains(t, edge, "kind")
}
