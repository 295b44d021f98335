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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/doctown/pkg/events"
	"github.com/kraklabs/doctown/pkg/ids"
)

// ErrInvalidRequest is returned for requests that fail validation.
var ErrInvalidRequest = errors.New("invalid assembly request")

// ProducerVersion is stamped on every assembly event.
const ProducerVersion = "doctown-assembly/0.1.0"

// Config tunes a Service.
type Config struct {
	Seed                uint64  `yaml:"seed"`
	MaxIterations       int     `yaml:"max_iterations"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	SimilarityTopK      int     `yaml:"similarity_top_k"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Seed:                DefaultSeed,
		MaxIterations:       DefaultMaxIterations,
		SimilarityThreshold: DefaultSimilarityThreshold,
		SimilarityTopK:      DefaultSimilarityTopK,
	}
}

// ChunkInput is an embedded chunk.
type ChunkInput struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	Content string    `json:"content"`
}

// SymbolInput is an extracted symbol with its chunks and resolved links.
// Calls hold symbol ids. Imports hold the file's import strings; an
// import that names a symbol id also becomes an imports edge.
type SymbolInput struct {
	SymbolID  string   `json:"symbol_id"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Language  string   `json:"language,omitempty"`
	FilePath  string   `json:"file_path"`
	Signature string   `json:"signature,omitempty"`
	ChunkIDs  []string `json:"chunk_ids"`
	Calls     []string `json:"calls,omitempty"`
	Imports   []string `json:"imports,omitempty"`
}

// Request is the input of one assembly run.
type Request struct {
	JobID   string        `json:"job_id"`
	RepoURL string        `json:"repo_url"`
	GitRef  string        `json:"git_ref"`
	Chunks  []ChunkInput  `json:"chunks"`
	Symbols []SymbolInput `json:"symbols"`
}

// Cluster is a labeled group of symbols.
type Cluster struct {
	ClusterID string   `json:"cluster_id"`
	Label     string   `json:"label"`
	Members   []string `json:"members"`
}

// NodeView is the wire form of a Node.
type NodeView struct {
	ID         string            `json:"id"`
	Metadata   map[string]string `json:"metadata"`
	ClusterID  string            `json:"cluster_id"`
	Centrality float64           `json:"centrality"`
}

// Stats summarises a run.
type Stats struct {
	ClusterCount int   `json:"cluster_count"`
	NodeCount    int   `json:"node_count"`
	EdgeCount    int   `json:"edge_count"`
	DurationMS   int64 `json:"duration_ms"`
}

// Response is the output of one assembly run.
type Response struct {
	JobID          string            `json:"job_id"`
	Clusters       []Cluster         `json:"clusters"`
	Nodes          []NodeView        `json:"nodes"`
	Edges          []Edge            `json:"edges"`
	SymbolContexts []SymbolContext   `json:"symbol_contexts"`
	Stats          Stats             `json:"stats"`
	Events         []events.Envelope `json:"events"`
}

// Option configures a Service.
type Option func(*Service)

// WithLabeler replaces the term-frequency labeler.
func WithLabeler(l Labeler) Option {
	return func(s *Service) { s.labeler = l }
}

// Service runs clustering, graph construction, centrality and context
// aggregation for one job at a time. It holds no per-run state and is safe
// for concurrent use.
type Service struct {
	cfg     Config
	labeler Labeler
	logger  *slog.Logger
}

// NewService creates a Service. Zero config fields take the defaults.
func NewService(cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.SimilarityTopK <= 0 {
		cfg.SimilarityTopK = def.SimilarityTopK
	}
	s := &Service{cfg: cfg, labeler: NewTFLabeler(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks the request identifiers.
func (r *Request) Validate() error {
	if err := ids.ValidateJobID(r.JobID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if r.RepoURL == "" {
		return fmt.Errorf("%w: repo_url is empty", ErrInvalidRequest)
	}
	return nil
}

// Assemble clusters the chunk vectors, builds the symbol graph and returns
// it together with per-symbol contexts and the events of the run.
func (s *Service) Assemble(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	resp, err := s.assemble(ctx, req, start)
	status := "success"
	if err != nil {
		status = "failed"
		s.logger.Warn("assembly.failed", "job_id", req.JobID, "err", err)
	}
	recordRun(status, time.Since(start))
	return resp, err
}

func (s *Service) assemble(ctx context.Context, req *Request, start time.Time) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	evctx := events.Context{JobID: req.JobID, RepoURL: req.RepoURL, GitRef: req.GitRef}
	resp := &Response{JobID: req.JobID}
	emit := func(t events.EventType, payload any) *events.Envelope {
		env := events.New(t, evctx, payload)
		env.Meta.ProducerVersion = ProducerVersion
		resp.Events = append(resp.Events, env)
		return &resp.Events[len(resp.Events)-1]
	}

	emit(events.AssemblyStarted, events.AssemblyStartedPayload{
		ChunkCount:  len(req.Chunks),
		SymbolCount: len(req.Symbols),
	})
	s.logger.Info("assembly.started", "job_id", req.JobID, "chunks", len(req.Chunks), "symbols", len(req.Symbols))

	// Clustering.
	vectors := make([][]float32, len(req.Chunks))
	for i, c := range req.Chunks {
		vectors[i] = c.Vector
	}
	k := ChooseK(len(vectors))
	km, err := KMeans(vectors, k, KMeansConfig{
		MaxIterations: s.cfg.MaxIterations,
		Seed:          s.cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("cluster chunks: %w", err)
	}
	recordIterations(km.Iterations)
	s.logger.Debug("assembly.kmeans.converged",
		"job_id", req.JobID, "k", k, "iterations", km.Iterations, "converged", km.Converged)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunkCluster := make(map[string]int, len(req.Chunks))
	chunkVector := make(map[string][]float32, len(req.Chunks))
	texts := make([][]string, k)
	for i, c := range req.Chunks {
		a := km.Assignments[i]
		if _, dup := chunkCluster[c.ChunkID]; !dup {
			chunkCluster[c.ChunkID] = a
			chunkVector[c.ChunkID] = c.Vector
		}
		texts[a] = append(texts[a], c.Content)
	}

	// Labeling and membership. A symbol joins the cluster of its first
	// clustered chunk.
	clusterIDs := make([]string, k)
	for i := range clusterIDs {
		clusterIDs[i] = fmt.Sprintf("cluster_%d", i)
	}
	resp.Clusters = make([]Cluster, k)
	labels := make(map[string]string, k)
	for i := range resp.Clusters {
		label := s.labeler.Label(texts[i])
		resp.Clusters[i] = Cluster{ClusterID: clusterIDs[i], Label: label, Members: []string{}}
		labels[clusterIDs[i]] = label
	}

	g := NewGraph()
	calls := make(map[string][]string)
	imports := make(map[string][]string)
	embeddings := make(map[string][]float32)
	for _, sym := range req.Symbols {
		// First occurrence of a repeated id wins.
		if g.Has(sym.SymbolID) {
			continue
		}
		node := Node{
			ID:        sym.SymbolID,
			Name:      sym.Name,
			Kind:      sym.Kind,
			Language:  sym.Language,
			FilePath:  sym.FilePath,
			Signature: sym.Signature,
			ClusterID: Unclustered,
		}
		for _, cid := range sym.ChunkIDs {
			if a, ok := chunkCluster[cid]; ok {
				node.ClusterID = clusterIDs[a]
				resp.Clusters[a].Members = append(resp.Clusters[a].Members, sym.SymbolID)
				embeddings[sym.SymbolID] = chunkVector[cid]
				break
			}
		}
		g.AddNode(node)
		calls[sym.SymbolID] = sym.Calls
		imports[sym.SymbolID] = sym.Imports
	}

	for _, c := range resp.Clusters {
		emit(events.AssemblyClusterCreated, events.ClusterCreatedPayload{
			ClusterID:   c.ClusterID,
			Label:       c.Label,
			MemberCount: len(c.Members),
		})
	}

	// Graph.
	nCalls := g.AddCallEdges(calls)
	nImports := g.AddImportEdges(imports)
	nRelated := g.AddSimilarityEdges(embeddings, s.cfg.SimilarityThreshold, s.cfg.SimilarityTopK)
	g.ApplyCentrality()
	recordEdges(EdgeCalls, nCalls)
	recordEdges(EdgeImports, nImports)
	recordEdges(EdgeRelated, nRelated)

	emit(events.AssemblyGraphCompleted, events.GraphCompletedPayload{
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
		EdgeTypes: events.EdgeTypeCounts{Calls: nCalls, Imports: nImports, Related: nRelated},
	})
	s.logger.Debug("assembly.graph.completed",
		"job_id", req.JobID, "nodes", g.NodeCount(), "calls", nCalls, "imports", nImports, "related", nRelated)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp.SymbolContexts = BuildContexts(g, imports, labels)
	resp.Nodes = make([]NodeView, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		resp.Nodes = append(resp.Nodes, NodeView{
			ID:         n.ID,
			Metadata:   n.Metadata(),
			ClusterID:  n.ClusterID,
			Centrality: n.Centrality,
		})
	}
	resp.Edges = append([]Edge{}, g.Edges()...)

	elapsed := time.Since(start)
	resp.Stats = Stats{
		ClusterCount: len(resp.Clusters),
		NodeCount:    g.NodeCount(),
		EdgeCount:    g.EdgeCount(),
		DurationMS:   elapsed.Milliseconds(),
	}
	done := emit(events.AssemblyCompleted, events.AssemblyCompletedPayload{
		ClusterCount: resp.Stats.ClusterCount,
		NodeCount:    resp.Stats.NodeCount,
		EdgeCount:    resp.Stats.EdgeCount,
		DurationMS:   resp.Stats.DurationMS,
	})
	*done = done.WithStatus(events.StatusSuccess)

	s.logger.Info("assembly.completed",
		"job_id", req.JobID, "clusters", len(resp.Clusters), "nodes", g.NodeCount(),
		"edges", g.EdgeCount(), "duration", elapsed)
	return resp, nil
}
