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

package pipeline

import (
	"sort"
	"sync"

	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/chunk"
	"github.com/kraklabs/doctown/pkg/embedder"
	"github.com/kraklabs/doctown/pkg/extract"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/llm"
	"github.com/kraklabs/doctown/pkg/packer"
)

// Collector gathers processed files from the orchestrator's file hook.
// It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	files []ingestion.FileResult
}

// Hook is passed to ingestion.WithFileHook.
func (c *Collector) Hook(fr ingestion.FileResult) {
	c.mu.Lock()
	c.files = append(c.files, fr)
	c.mu.Unlock()
}

// Files returns the collected files sorted by path.
func (c *Collector) Files() []ingestion.FileResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]ingestion.FileResult(nil), c.files...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// EmbedInputs lists every chunk for the embedder, in file order.
func EmbedInputs(files []ingestion.FileResult) []embedder.ChunkInput {
	var out []embedder.ChunkInput
	for _, f := range files {
		for _, c := range f.Chunks {
			out = append(out, embedder.ChunkInput{ChunkID: c.ID, Content: c.Content})
		}
	}
	return out
}

// symbolsOf returns the extracted symbols of f, or nil.
func symbolsOf(f ingestion.FileResult) []extract.Symbol {
	if f.Result == nil {
		return nil
	}
	return f.Result.Symbols
}

// ownedChunks returns the chunks cut for s: those carrying its name and
// lying inside its range.
func ownedChunks(s extract.Symbol, chunks []chunk.Chunk) []string {
	var ids []string
	for _, c := range chunks {
		if c.Metadata.SymbolName == s.Name && s.Range.Contains(c.ByteRange) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// AssemblyRequest turns ingest output and chunk vectors into an assembly
// request. Chunks without a vector are left out.
//
// Calls are the file-local calls resolved by extract.Result.CallTargets.
// Imports are the module paths imported by the symbol's file, in source
// order. Calls through an import stay unresolved: no cross-file linking
// is attempted.
func AssemblyRequest(jobID, repoURL, gitRef string, files []ingestion.FileResult, vectors map[string][]float32) *assembly.Request {
	req := &assembly.Request{JobID: jobID, RepoURL: repoURL, GitRef: gitRef}

	for _, f := range files {
		for _, c := range f.Chunks {
			v, ok := vectors[c.ID]
			if !ok {
				continue
			}
			req.Chunks = append(req.Chunks, assembly.ChunkInput{ChunkID: c.ID, Vector: v, Content: c.Content})
		}
		if f.Result == nil {
			continue
		}

		calls := f.Result.CallTargets()
		imports := ImportPaths(f.Result.Imports)
		for i, s := range f.Result.Symbols {
			req.Symbols = append(req.Symbols, assembly.SymbolInput{
				SymbolID:  extract.SymbolID(f.Path, s.Name),
				Name:      s.Name,
				Kind:      string(s.Kind),
				Language:  string(f.Language),
				FilePath:  f.Path,
				Signature: s.Signature,
				ChunkIDs:  ownedChunks(s, f.Chunks),
				Calls:     calls[i],
				Imports:   imports,
			})
		}
	}
	return req
}

// ImportPaths lists the distinct non-empty module paths of imports in
// order of first appearance, or nil when there are none.
func ImportPaths(imports []extract.Import) []string {
	var out []string
	seen := make(map[string]bool, len(imports))
	for _, imp := range imports {
		if imp.ModulePath == "" || seen[imp.ModulePath] {
			continue
		}
		seen[imp.ModulePath] = true
		out = append(out, imp.ModulePath)
	}
	return out
}

// Source identifies the repository a docpack is built from.
type Source struct {
	RepoURL    string
	GitRef     string
	CommitHash string
	// Timestamp pins the manifest created_at (RFC 3339) when set.
	Timestamp string
}

// PackRequest completes packer.FromAssembly with the source map, byte
// ranges and, when vectors is non-empty, the embeddings.
func PackRequest(src Source, asm *assembly.Response, files []ingestion.FileResult, vectors map[string][]float32) *packer.PackRequest {
	spans := make(map[string][2]int)
	for _, f := range files {
		for _, s := range symbolsOf(f) {
			id := extract.SymbolID(f.Path, s.Name)
			if _, dup := spans[id]; !dup {
				spans[id] = [2]int{s.Range.Start, s.Range.End}
			}
		}
	}

	req := packer.FromAssembly(asm, spans)
	req.RepoURL = src.RepoURL
	req.GitRef = src.GitRef
	req.CommitHash = src.CommitHash
	req.DeterministicTimestamp = src.Timestamp

	for _, f := range files {
		sf := packer.SourceFileInfo{FilePath: f.Path, Language: string(f.Language)}
		for _, c := range f.Chunks {
			ci := packer.ChunkInfo{
				ChunkID:   c.ID,
				ByteRange: [2]int{c.ByteRange.Start, c.ByteRange.End},
				SymbolIDs: []string{},
			}
			for _, s := range symbolsOf(f) {
				if s.Range.Contains(c.ByteRange) {
					ci.SymbolIDs = append(ci.SymbolIDs, extract.SymbolID(f.Path, s.Name))
				}
			}
			sf.Chunks = append(sf.Chunks, ci)
		}
		req.SourceFiles = append(req.SourceFiles, sf)
	}

	if len(vectors) > 0 {
		data := &packer.EmbeddingData{Vectors: make(map[string][]float32, len(vectors))}
		for id, v := range vectors {
			data.Vectors[id] = v
			data.Dimensions = len(v)
		}
		req.Embeddings = data
	}
	return req
}

// ApplyDocs replaces node summaries with generated ones. Symbols whose
// generation failed keep the summary they had.
func ApplyDocs(req *packer.PackRequest, docs *llm.Documentation) {
	summaries := docs.Summaries()
	for i := range req.Nodes {
		if s, ok := summaries[req.Nodes[i].SymbolID]; ok && s != "" {
			req.Nodes[i].DocumentationSummary = s
		}
	}
}
