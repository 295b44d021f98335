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

// Package packer seals the outputs of ingest and assembly into a docpack.
package packer

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/docpack"
)

// ErrInvalidRequest is returned for pack requests that fail validation.
var ErrInvalidRequest = errors.New("invalid pack request")

// PackRequest carries everything a docpack is built from.
type PackRequest struct {
	RepoURL    string `json:"repo_url"`
	GitRef     string `json:"git_ref"`
	CommitHash string `json:"commit_hash,omitempty"`

	SourceFiles []SourceFileInfo `json:"source_files"`

	// ClusterAssignments maps symbol id to cluster id, ClusterLabels
	// cluster id to label.
	ClusterAssignments map[string]string `json:"cluster_assignments"`
	ClusterLabels      map[string]string `json:"cluster_labels"`

	Nodes []NodeInfo `json:"nodes"`
	Edges []EdgeInfo `json:"edges"`

	Embeddings     *EmbeddingData           `json:"embeddings,omitempty"`
	SymbolContexts []assembly.SymbolContext `json:"symbol_contexts,omitempty"`

	// DeterministicTimestamp pins the manifest created_at (RFC 3339).
	DeterministicTimestamp string `json:"deterministic_timestamp,omitempty"`
}

type SourceFileInfo struct {
	FilePath string      `json:"file_path"`
	Language string      `json:"language"`
	Chunks   []ChunkInfo `json:"chunks"`
}

type ChunkInfo struct {
	ChunkID   string   `json:"chunk_id"`
	ByteRange [2]int   `json:"byte_range"`
	SymbolIDs []string `json:"symbol_ids"`
}

type NodeInfo struct {
	SymbolID             string   `json:"symbol_id"`
	Name                 string   `json:"name"`
	Kind                 string   `json:"kind"`
	Language             string   `json:"language"`
	FilePath             string   `json:"file_path"`
	ByteRange            [2]int   `json:"byte_range"`
	Signature            string   `json:"signature,omitempty"`
	Calls                []string `json:"calls"`
	CalledBy             []string `json:"called_by"`
	Imports              []string `json:"imports"`
	Centrality           float64  `json:"centrality"`
	DocumentationSummary string   `json:"documentation_summary"`
	DocumentationDetails string   `json:"documentation_details,omitempty"`
}

type EdgeInfo struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// EmbeddingData holds chunk vectors keyed by chunk id.
type EmbeddingData struct {
	Dimensions int                  `json:"dimensions"`
	Vectors    map[string][]float32 `json:"vectors"`
}

// PackResponse is the sealed docpack and its statistics.
type PackResponse struct {
	DocpackID    string     `json:"docpack_id"`
	DocpackBytes []byte     `json:"docpack_bytes"`
	Statistics   Statistics `json:"statistics"`
}

type Statistics struct {
	FileCount           int  `json:"file_count"`
	SymbolCount         int  `json:"symbol_count"`
	ClusterCount        int  `json:"cluster_count"`
	EmbeddingDimensions *int `json:"embedding_dimensions,omitempty"`
	HasEmbeddings       bool `json:"has_embeddings"`
	HasSymbolContexts   bool `json:"has_symbol_contexts"`
}

// Packer builds docpacks. It is safe for concurrent use.
type Packer struct {
	writer *docpack.Writer
	logger *slog.Logger
}

// New returns a Packer writing at the given compression level.
func New(compression docpack.Compression, logger *slog.Logger) *Packer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packer{
		writer: docpack.NewWriter(docpack.WithCompression(compression), docpack.WithLogger(logger)),
		logger: logger,
	}
}

// Validate checks the parts of a request the docpack format depends on.
func (r *PackRequest) Validate() error {
	if r.RepoURL == "" {
		return fmt.Errorf("%w: repo_url is empty", ErrInvalidRequest)
	}
	if r.DeterministicTimestamp != "" {
		if _, err := time.Parse(time.RFC3339, r.DeterministicTimestamp); err != nil {
			return fmt.Errorf("%w: deterministic_timestamp: %w", ErrInvalidRequest, err)
		}
	}
	if r.Embeddings != nil && r.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("%w: embeddings.dimensions must be positive", ErrInvalidRequest)
	}
	return nil
}

// Pack builds the docpack for req. Identical requests with a
// DeterministicTimestamp produce byte-identical output.
func (p *Packer) Pack(req *PackRequest) (*PackResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	content := docpack.Content{
		Graph:     buildGraph(req),
		Nodes:     buildNodes(req),
		Clusters:  buildClusters(req),
		SourceMap: buildSourceMap(req),
	}
	if req.Embeddings != nil {
		emb, err := buildEmbeddings(req.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		content.Embeddings = emb
	}
	if req.SymbolContexts != nil {
		content.SymbolContexts = buildContexts(req.SymbolContexts)
	}

	stats := Statistics{
		FileCount:         len(req.SourceFiles),
		SymbolCount:       len(req.Nodes),
		ClusterCount:      len(req.ClusterLabels),
		HasEmbeddings:     req.Embeddings != nil,
		HasSymbolContexts: req.SymbolContexts != nil,
	}
	manifestStats := docpack.Statistics{
		FileCount:    stats.FileCount,
		SymbolCount:  stats.SymbolCount,
		ClusterCount: stats.ClusterCount,
	}
	if req.Embeddings != nil {
		dims := req.Embeddings.Dimensions
		stats.EmbeddingDimensions = &dims
		manifestStats.EmbeddingDimensions = dims
	}

	src := docpack.Source{RepoURL: req.RepoURL, GitRef: req.GitRef, CommitHash: req.CommitHash}
	var manifest docpack.Manifest
	if req.DeterministicTimestamp != "" {
		manifest = docpack.NewManifestAt(src, manifestStats, req.DeterministicTimestamp)
	} else {
		manifest = docpack.NewManifest(src, manifestStats)
	}

	data, manifest, err := p.writer.Write(manifest, content)
	if err != nil {
		return nil, fmt.Errorf("write docpack: %w", err)
	}
	p.logger.Info("packer.pack.done",
		"docpack_id", manifest.DocpackID, "bytes", len(data),
		"files", stats.FileCount, "symbols", stats.SymbolCount, "clusters", stats.ClusterCount)

	return &PackResponse{DocpackID: manifest.DocpackID, DocpackBytes: data, Statistics: stats}, nil
}

func buildGraph(req *PackRequest) docpack.Graph {
	nodes := make([]string, len(req.Nodes))
	for i, n := range req.Nodes {
		nodes[i] = n.SymbolID
	}
	edges := make([]docpack.Edge, len(req.Edges))
	for i, e := range req.Edges {
		edges[i] = docpack.Edge{From: e.From, To: e.To, Kind: e.Kind}
	}
	return docpack.NewGraph(nodes, edges)
}

func buildNodes(req *PackRequest) docpack.Nodes {
	symbols := make([]docpack.Symbol, len(req.Nodes))
	for i, n := range req.Nodes {
		cluster, ok := req.ClusterAssignments[n.SymbolID]
		if !ok {
			cluster = assembly.Unclustered
		}
		symbols[i] = docpack.Symbol{
			ID:         n.SymbolID,
			Name:       n.Name,
			Kind:       n.Kind,
			Language:   n.Language,
			FilePath:   n.FilePath,
			ByteRange:  n.ByteRange,
			Signature:  n.Signature,
			Calls:      n.Calls,
			CalledBy:   n.CalledBy,
			Imports:    n.Imports,
			ClusterID:  cluster,
			Centrality: n.Centrality,
			Documentation: docpack.Documentation{
				Summary: n.DocumentationSummary,
				Details: n.DocumentationDetails,
			},
		}
	}
	return docpack.NewNodes(symbols)
}

func buildClusters(req *PackRequest) docpack.Clusters {
	members := make(map[string]int)
	for _, cluster := range req.ClusterAssignments {
		members[cluster]++
	}
	clusters := make([]docpack.Cluster, 0, len(req.ClusterLabels))
	for id, label := range req.ClusterLabels {
		clusters = append(clusters, docpack.Cluster{ClusterID: id, Label: label, MemberCount: members[id]})
	}
	return docpack.NewClusters(clusters)
}

func buildSourceMap(req *PackRequest) docpack.SourceMap {
	files := make([]docpack.SourceFile, len(req.SourceFiles))
	for i, f := range req.SourceFiles {
		chunks := make([]docpack.SourceMapChunk, len(f.Chunks))
		for j, c := range f.Chunks {
			chunks[j] = docpack.SourceMapChunk{ChunkID: c.ChunkID, ByteRange: c.ByteRange, SymbolIDs: c.SymbolIDs}
		}
		files[i] = docpack.SourceFile{FilePath: f.FilePath, Language: f.Language, Chunks: chunks}
	}
	return docpack.NewSourceMap(files)
}

// buildEmbeddings writes vectors in chunk id order.
func buildEmbeddings(data *EmbeddingData) (*docpack.EmbeddingsWriter, error) {
	ids := make([]string, 0, len(data.Vectors))
	for id := range data.Vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := docpack.NewEmbeddingsWriter(data.Dimensions)
	for _, id := range ids {
		if err := w.Add(id, data.Vectors[id]); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func buildContexts(in []assembly.SymbolContext) *docpack.SymbolContexts {
	out := make([]docpack.SymbolContext, len(in))
	for i, c := range in {
		out[i] = docpack.SymbolContext(c)
	}
	return &docpack.SymbolContexts{Contexts: out}
}
