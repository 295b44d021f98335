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

package events

// AssemblyStartedPayload opens an assembly run.
type AssemblyStartedPayload struct {
	ChunkCount  int `json:"chunk_count"`
	SymbolCount int `json:"symbol_count"`
}

// ClusterCreatedPayload is emitted once per labeled cluster.
type ClusterCreatedPayload struct {
	ClusterID   string `json:"cluster_id"`
	Label       string `json:"label"`
	MemberCount int    `json:"member_count"`
}

// EdgeTypeCounts splits the edge total by kind.
type EdgeTypeCounts struct {
	Calls   int `json:"calls"`
	Imports int `json:"imports"`
	Related int `json:"related"`
}

// GraphCompletedPayload is emitted after all edges are built.
type GraphCompletedPayload struct {
	NodeCount int            `json:"node_count"`
	EdgeCount int            `json:"edge_count"`
	EdgeTypes EdgeTypeCounts `json:"edge_types"`
}

// AssemblyCompletedPayload closes an assembly run.
type AssemblyCompletedPayload struct {
	ClusterCount int    `json:"cluster_count"`
	NodeCount    int    `json:"node_count"`
	EdgeCount    int    `json:"edge_count"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}
