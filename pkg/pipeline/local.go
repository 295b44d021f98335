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

// Package pipeline runs a whole job in-process: ingest a repository, embed
// its chunks, assemble the symbol graph, optionally document the symbols
// and pack the result into a docpack.
//
// The HTTP services expose each stage separately. The CLI uses Local to
// chain them without a network hop between stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/embedder"
	"github.com/kraklabs/doctown/pkg/events"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/llm"
	"github.com/kraklabs/doctown/pkg/packer"
)

// ErrNoChunks is returned when ingest produced nothing to assemble.
var ErrNoChunks = errors.New("no chunks to assemble")

// Option configures a Local runner.
type Option func(*Local)

// WithEmbedder enables the embed stage.
func WithEmbedder(e *embedder.Embedder) Option {
	return func(l *Local) { l.embed = e }
}

// WithAssembly enables the assemble stage. It requires an embedder.
func WithAssembly(s *assembly.Service) Option {
	return func(l *Local) { l.assembly = s }
}

// WithDocumenter enables the document stage between assemble and pack. It
// requires an assembly service.
func WithDocumenter(d *llm.Documenter) Option {
	return func(l *Local) { l.documenter = d }
}

// WithPacker enables the pack stage. It requires an assembly service.
func WithPacker(p *packer.Packer) Option {
	return func(l *Local) { l.packer = p }
}

// WithIngestOptions forwards options to the ingest orchestrator.
func WithIngestOptions(opts ...ingestion.Option) Option {
	return func(l *Local) { l.ingestOpts = append(l.ingestOpts, opts...) }
}

// WithTimestamp pins the docpack created_at field.
func WithTimestamp(ts string) Option {
	return func(l *Local) { l.timestamp = ts }
}

// Local chains the pipeline stages in one process. Runs are serialized.
type Local struct {
	logger     *slog.Logger
	orch       *ingestion.Orchestrator
	ingestOpts []ingestion.Option
	embed      *embedder.Embedder
	assembly   *assembly.Service
	documenter *llm.Documenter
	packer     *packer.Packer
	timestamp  string

	runMu     sync.Mutex
	collector *Collector
}

// Result holds the output of every stage that ran.
type Result struct {
	Ingest   *ingestion.Summary
	RepoURL  string
	GitRef   string
	Files    []ingestion.FileResult
	Vectors  map[string][]float32
	Assembly *assembly.Response
	Docs     *llm.Documentation
	Pack     *packer.PackResponse
}

// NewLocal creates a runner. Stages after ingest run only when their
// service is configured.
func NewLocal(cfg ingestion.Config, logger *slog.Logger, opts ...Option) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Local{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	if l.assembly != nil && l.embed == nil {
		return nil, errors.New("pipeline: assembly requires an embedder")
	}
	if l.documenter != nil && l.assembly == nil {
		return nil, errors.New("pipeline: documentation requires assembly")
	}
	if l.packer != nil && l.assembly == nil {
		return nil, errors.New("pipeline: packing requires assembly")
	}

	hook := ingestion.WithFileHook(func(fr ingestion.FileResult) {
		if c := l.collector; c != nil {
			c.Hook(fr)
		}
	})
	orch, err := ingestion.NewOrchestrator(cfg, logger, append(l.ingestOpts, hook)...)
	if err != nil {
		return nil, err
	}
	l.orch = orch
	return l, nil
}

// Loader returns the repository loader used for local sources.
func (l *Local) Loader() *ingestion.RepoLoader { return l.orch.Loader() }

// Run executes the configured stages for job. observe, when non-nil, sees
// every ingest and assembly event in order. On error the returned Result
// holds whatever the completed stages produced.
func (l *Local) Run(ctx context.Context, job ingestion.Job, observe func(events.Envelope)) (*Result, error) {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if observe == nil {
		observe = func(events.Envelope) {}
	}

	l.collector = &Collector{}
	defer func() { l.collector = nil }()

	res := &Result{}
	start := time.Now()

	// Step 1: ingest.
	stepStart := time.Now()
	out := make(chan events.Envelope, 100)
	var (
		summary *ingestion.Summary
		runErr  error
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		summary, runErr = l.orch.Run(ctx, job, out)
	}()
	for env := range out {
		if res.RepoURL == "" {
			res.RepoURL, res.GitRef = env.Context.RepoURL, env.Context.GitRef
		}
		observe(env)
	}
	<-done
	res.Ingest = summary
	if runErr != nil {
		return res, runErr
	}
	res.Files = l.collector.Files()
	l.logger.Info("pipeline.step.ingest",
		"job_id", summary.JobID,
		"files", summary.FilesProcessed,
		"chunks", summary.ChunksCreated,
		"duration_ms", time.Since(stepStart).Milliseconds(),
	)

	if l.embed == nil {
		return res, nil
	}

	// Step 2: embed.
	stepStart = time.Now()
	inputs := EmbedInputs(res.Files)
	if len(inputs) == 0 {
		return res, ErrNoChunks
	}
	vectors, err := l.embed.Embed(ctx, summary.JobID, inputs)
	if err != nil {
		return res, fmt.Errorf("embed: %w", err)
	}
	res.Vectors = vectors
	l.logger.Info("pipeline.step.embed",
		"job_id", summary.JobID,
		"chunks", len(vectors),
		"dimensions", l.embed.Dimensions(),
		"duration_ms", time.Since(stepStart).Milliseconds(),
	)

	if l.assembly == nil {
		return res, nil
	}

	// Step 3: assemble.
	stepStart = time.Now()
	req := AssemblyRequest(summary.JobID, res.RepoURL, res.GitRef, res.Files, vectors)
	asm, err := l.assembly.Assemble(ctx, req)
	if err != nil {
		return res, fmt.Errorf("assemble: %w", err)
	}
	res.Assembly = asm
	for _, env := range asm.Events {
		observe(env)
	}
	l.logger.Info("pipeline.step.assemble",
		"job_id", summary.JobID,
		"symbols", len(asm.Nodes),
		"clusters", len(asm.Clusters),
		"duration_ms", time.Since(stepStart).Milliseconds(),
	)

	// Step 4: document.
	if l.documenter != nil {
		stepStart = time.Now()
		docs, err := l.documenter.Document(ctx, asm.SymbolContexts)
		if err != nil {
			return res, fmt.Errorf("document: %w", err)
		}
		res.Docs = docs
		l.logger.Info("pipeline.step.document",
			"job_id", summary.JobID,
			"symbols", len(docs.Symbols),
			"warnings", len(docs.Warnings),
			"tokens", docs.TotalTokens(),
			"duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	if l.packer == nil {
		return res, nil
	}

	// Step 5: pack.
	stepStart = time.Now()
	src := Source{RepoURL: res.RepoURL, GitRef: res.GitRef, CommitHash: job.CommitSHA, Timestamp: l.timestamp}
	packReq := PackRequest(src, asm, res.Files, vectors)
	if res.Docs != nil {
		ApplyDocs(packReq, res.Docs)
	}
	packed, err := l.packer.Pack(packReq)
	if err != nil {
		return res, fmt.Errorf("pack: %w", err)
	}
	res.Pack = packed
	l.logger.Info("pipeline.step.pack",
		"job_id", summary.JobID,
		"docpack_id", packed.DocpackID,
		"bytes", len(packed.DocpackBytes),
		"duration_ms", time.Since(stepStart).Milliseconds(),
	)

	l.logger.Info("pipeline.completed",
		"job_id", summary.JobID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
