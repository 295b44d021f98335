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

package packer

import (
	"fmt"

	"github.com/kraklabs/doctown/pkg/assembly"
)

// FromAssembly fills the graph half of a PackRequest from an assembly
// response. Calls and CalledBy on each node hold symbol ids taken from the
// response edges. Imports are the import strings of the node's symbol
// context. spans supplies byte ranges keyed by symbol id.
// The caller sets the source fields, SourceFiles and Embeddings.
func FromAssembly(resp *assembly.Response, spans map[string][2]int) *PackRequest {
	calls := make(map[string][]string)
	calledBy := make(map[string][]string)
	edges := make([]EdgeInfo, 0, len(resp.Edges))
	for _, e := range resp.Edges {
		edges = append(edges, EdgeInfo{From: e.Source, To: e.Target, Kind: string(e.Kind)})
		if e.Kind == assembly.EdgeCalls {
			calls[e.Source] = append(calls[e.Source], e.Target)
			calledBy[e.Target] = append(calledBy[e.Target], e.Source)
		}
	}

	req := &PackRequest{
		ClusterAssignments: make(map[string]string),
		ClusterLabels:      make(map[string]string, len(resp.Clusters)),
		Nodes:              make([]NodeInfo, 0, len(resp.Nodes)),
		Edges:              edges,
		SymbolContexts:     resp.SymbolContexts,
	}
	imports := make(map[string][]string, len(resp.SymbolContexts))
	for _, sc := range resp.SymbolContexts {
		imports[sc.SymbolID] = sc.Imports
	}
	for _, c := range resp.Clusters {
		req.ClusterLabels[c.ClusterID] = c.Label
	}
	for _, n := range resp.Nodes {
		if n.ClusterID != assembly.Unclustered {
			req.ClusterAssignments[n.ID] = n.ClusterID
		}
		md := n.Metadata
		req.Nodes = append(req.Nodes, NodeInfo{
			SymbolID:             n.ID,
			Name:                 md["name"],
			Kind:                 md["kind"],
			Language:             md["language"],
			FilePath:             md["file_path"],
			ByteRange:            spans[n.ID],
			Signature:            md["signature"],
			Calls:                orEmpty(calls[n.ID]),
			CalledBy:             orEmpty(calledBy[n.ID]),
			Imports:              orEmpty(imports[n.ID]),
			Centrality:           n.Centrality,
			DocumentationSummary: summary(md["kind"], md["name"], md["file_path"]),
		})
	}
	return req
}

func summary(kind, name, file string) string {
	return fmt.Sprintf("%s %s in %s", kind, name, file)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
