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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dttest "github.com/kraklabs/doctown/internal/testing"
	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/chunk"
	"github.com/kraklabs/doctown/pkg/docpack"
	"github.com/kraklabs/doctown/pkg/embedder"
	"github.com/kraklabs/doctown/pkg/events"
	"github.com/kraklabs/doctown/pkg/extract"
	"github.com/kraklabs/doctown/pkg/grammar"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/llm"
	"github.com/kraklabs/doctown/pkg/packer"
)

func sym(name string, start, end int) extract.Symbol {
	return extract.Symbol{
		Kind:  extract.KindFunction,
		Name:  name,
		Range: extract.ByteRange{Start: start, End: end},
	}
}

func chk(id, symbol string, start, end int) chunk.Chunk {
	return chunk.Chunk{
		ID:        id,
		Content:   "body of " + id,
		ByteRange: extract.ByteRange{Start: start, End: end},
		Metadata:  chunk.Metadata{SymbolName: symbol},
	}
}

// sampleFiles models a.py calling a local function and an imported one
// from util.py.
func sampleFiles() []ingestion.FileResult {
	return []ingestion.FileResult{
		{
			Path:     "a.py",
			Language: grammar.Python,
			Result: &extract.Result{
				Path:     "a.py",
				Language: grammar.Python,
				Symbols:  []extract.Symbol{sym("run", 0, 40), sym("local", 41, 60)},
				Imports:  []extract.Import{{ModulePath: "util", ImportedItems: []string{"helper"}}},
				Calls: []extract.Call{
					{Name: "local", Range: extract.ByteRange{Start: 10, End: 17}, Kind: extract.CallFunction, IsResolved: true},
					{Name: "helper", Range: extract.ByteRange{Start: 20, End: 28}, Kind: extract.CallFunction},
					{Name: "helper", Range: extract.ByteRange{Start: 30, End: 38}, Kind: extract.CallFunction},
				},
			},
			Chunks: []chunk.Chunk{chk("chunk_a1", "run", 0, 40), chk("chunk_a2", "local", 41, 60)},
		},
		{
			Path:     "util.py",
			Language: grammar.Python,
			Result: &extract.Result{
				Path:     "util.py",
				Language: grammar.Python,
				Symbols:  []extract.Symbol{sym("helper", 0, 20)},
			},
			Chunks: []chunk.Chunk{chk("chunk_u1", "helper", 0, 20)},
		},
		{
			Path:     "README.txt",
			Language: grammar.Language("text"),
			Chunks:   []chunk.Chunk{chk("chunk_r1", "", 0, 10)},
		},
	}
}

func allVectors(files []ingestion.FileResult) map[string][]float32 {
	out := make(map[string][]float32)
	for i, in := range EmbedInputs(files) {
		out[in.ChunkID] = []float32{float32(i), 1, 0}
	}
	return out
}

func symbolByID(t *testing.T, req *assembly.Request, id string) assembly.SymbolInput {
	t.Helper()
	for _, s := range req.Symbols {
		if s.SymbolID == id {
			return s
		}
	}
	t.Fatalf("symbol %q not in request", id)
	return assembly.SymbolInput{}
}

func TestCollector_SortsByPath(t *testing.T) {
	var c Collector
	c.Hook(ingestion.FileResult{Path: "b.go"})
	c.Hook(ingestion.FileResult{Path: "a.go"})
	files := c.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.go", files[0].Path)
	assert.Equal(t, "b.go", files[1].Path)
}

func TestEmbedInputs_FileOrder(t *testing.T) {
	in := EmbedInputs(sampleFiles())
	ids := make([]string, len(in))
	for i, c := range in {
		ids[i] = c.ChunkID
	}
	assert.Equal(t, []string{"chunk_a1", "chunk_a2", "chunk_u1", "chunk_r1"}, ids)
	assert.Equal(t, "body of chunk_a1", in[0].Content)
}

func TestAssemblyRequest_Symbols(t *testing.T) {
	files := sampleFiles()
	req := AssemblyRequest("job_test1", "https://github.com/acme/widgets", "main", files, allVectors(files))

	assert.Equal(t, "job_test1", req.JobID)
	assert.Len(t, req.Chunks, 4)
	require.Len(t, req.Symbols, 3)

	run := symbolByID(t, req, "sym_a.py::run")
	assert.Equal(t, "run", run.Name)
	assert.Equal(t, "function", run.Kind)
	assert.Equal(t, "python", run.Language)
	assert.Equal(t, "a.py", run.FilePath)
	assert.Equal(t, []string{"chunk_a1"}, run.ChunkIDs)
	assert.Equal(t, []string{"sym_a.py::local"}, run.Calls)
	assert.Equal(t, []string{"util"}, run.Imports)

	local := symbolByID(t, req, "sym_a.py::local")
	assert.Equal(t, []string{"chunk_a2"}, local.ChunkIDs)
	assert.Empty(t, local.Calls)
	assert.Equal(t, []string{"util"}, local.Imports)

	helper := symbolByID(t, req, "sym_util.py::helper")
	assert.Equal(t, []string{"chunk_u1"}, helper.ChunkIDs)
	assert.Empty(t, helper.Imports)
}

func TestAssemblyRequest_SkipsChunksWithoutVector(t *testing.T) {
	files := sampleFiles()
	vectors := map[string][]float32{"chunk_u1": {1, 0, 0}}
	req := AssemblyRequest("job_test1", "local", "HEAD", files, vectors)

	require.Len(t, req.Chunks, 1)
	assert.Equal(t, "chunk_u1", req.Chunks[0].ChunkID)
	assert.Len(t, req.Symbols, 3)
}

func TestImportPaths(t *testing.T) {
	imports := []extract.Import{
		{ModulePath: "std::collections", ImportedItems: []string{"HashMap", "HashSet"}},
		{ModulePath: "std::io"},
		{ModulePath: "std::collections", ImportedItems: []string{"BTreeMap"}},
		{ModulePath: ""},
	}
	assert.Equal(t, []string{"std::collections", "std::io"}, ImportPaths(imports))
	assert.Nil(t, ImportPaths(nil))
}

func TestPackRequest_SourceMapAndEmbeddings(t *testing.T) {
	files := sampleFiles()
	vectors := allVectors(files)
	asm, err := assembly.NewService(assembly.DefaultConfig(), dttest.DiscardLogger()).
		Assemble(context.Background(), AssemblyRequest("job_test1", "https://github.com/acme/widgets", "main", files, vectors))
	require.NoError(t, err)

	src := Source{RepoURL: "https://github.com/acme/widgets", GitRef: "main", CommitHash: "abc123", Timestamp: "2025-01-02T03:04:05Z"}
	req := PackRequest(src, asm, files, vectors)

	assert.Equal(t, "abc123", req.CommitHash)
	require.Len(t, req.SourceFiles, 3)
	a := req.SourceFiles[0]
	assert.Equal(t, "a.py", a.FilePath)
	assert.Equal(t, "python", a.Language)
	require.Len(t, a.Chunks, 2)
	assert.Equal(t, [2]int{0, 40}, a.Chunks[0].ByteRange)
	assert.Equal(t, []string{"sym_a.py::run"}, a.Chunks[0].SymbolIDs)
	assert.Equal(t, []string{}, req.SourceFiles[2].Chunks[0].SymbolIDs)

	require.NotNil(t, req.Embeddings)
	assert.Equal(t, 3, req.Embeddings.Dimensions)
	assert.Len(t, req.Embeddings.Vectors, 4)

	for _, n := range req.Nodes {
		if n.SymbolID == "sym_a.py::local" {
			assert.Equal(t, [2]int{41, 60}, n.ByteRange)
		}
	}

	resp, err := packer.New(docpack.CompressionFast, dttest.DiscardLogger()).Pack(req)
	require.NoError(t, err)
	dp, err := docpack.Read(resp.DocpackBytes)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02T03:04:05Z", dp.Manifest.CreatedAt)
	assert.Len(t, dp.SourceMap.Files, 3)
	assert.True(t, resp.Statistics.HasEmbeddings)
}

func TestPackRequest_NoVectorsNoEmbeddings(t *testing.T) {
	req := PackRequest(Source{RepoURL: "local"}, &assembly.Response{}, nil, nil)
	assert.Nil(t, req.Embeddings)
	assert.Empty(t, req.SourceFiles)
}

const appPy = `from util import helper


def run():
    helper()
    local()


def local():
    return 1
`

const utilPy = `def helper():
    return 2
`

func newLocal(t *testing.T, provider embedder.Provider, opts ...Option) *Local {
	t.Helper()
	var all []Option
	if provider != nil {
		emb, err := embedder.New(provider, embedder.DefaultConfig(), dttest.DiscardLogger())
		require.NoError(t, err)
		all = append(all,
			WithEmbedder(emb),
			WithAssembly(assembly.NewService(assembly.DefaultConfig(), dttest.DiscardLogger())),
			WithPacker(packer.New(docpack.CompressionFast, dttest.DiscardLogger())),
		)
	}
	l, err := NewLocal(ingestion.DefaultConfig(), dttest.DiscardLogger(), append(all, opts...)...)
	require.NoError(t, err)
	return l
}

func TestLocal_EndToEnd(t *testing.T) {
	provider := &dttest.FakeEmbedder{}
	l := newLocal(t, provider, WithTimestamp("2025-01-02T03:04:05Z"))
	repo, err := l.Loader().LoadDir(dttest.WriteTree(t, map[string]string{
		"app.py":    appPy,
		"util.py":   utilPy,
		"notes.bin": "\x00\x01\x02",
	}))
	require.NoError(t, err)

	var seen []events.EventType
	res, err := l.Run(context.Background(), ingestion.Job{ID: "job_e2e", Repo: repo}, func(env events.Envelope) {
		seen = append(seen, env.EventType)
	})
	require.NoError(t, err)

	assert.Equal(t, "local", res.RepoURL)
	assert.Equal(t, "HEAD", res.GitRef)
	assert.Equal(t, events.StatusSuccess, res.Ingest.Status)
	assert.Len(t, res.Files, 2)
	assert.Len(t, res.Vectors, res.Ingest.ChunksCreated)
	batches, _ := provider.Calls()
	assert.Positive(t, batches)

	require.NotNil(t, res.Assembly)
	assert.Len(t, res.Assembly.Nodes, 3)
	for _, e := range res.Assembly.Edges {
		assert.NotEqual(t, assembly.EdgeImports, e.Kind, "module imports name no symbol")
	}
	for _, sc := range res.Assembly.SymbolContexts {
		switch sc.FilePath {
		case "app.py":
			assert.Equal(t, []string{"util"}, sc.Imports)
		case "util.py":
			assert.Empty(t, sc.Imports)
		}
	}

	assert.Equal(t, events.IngestStarted, seen[0])
	assert.Contains(t, seen, events.IngestCompleted)
	assert.Contains(t, seen, events.AssemblyStarted)

	require.NotNil(t, res.Pack)
	dp, err := docpack.Read(res.Pack.DocpackBytes)
	require.NoError(t, err)
	assert.Equal(t, res.Pack.DocpackID, dp.Manifest.DocpackID)
	assert.Len(t, dp.Nodes.Symbols, 3)
	for _, n := range dp.Nodes.Symbols {
		if n.FilePath == "app.py" {
			assert.Equal(t, []string{"util"}, n.Imports)
		}
	}
}

func TestLocal_IngestOnly(t *testing.T) {
	l := newLocal(t, nil)
	repo, err := l.Loader().LoadDir(dttest.WriteTree(t, map[string]string{"util.py": utilPy}))
	require.NoError(t, err)

	res, err := l.Run(context.Background(), ingestion.Job{Repo: repo}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Files, 1)
	assert.Nil(t, res.Vectors)
	assert.Nil(t, res.Assembly)
	assert.Nil(t, res.Pack)
}

func TestLocal_NoChunks(t *testing.T) {
	l := newLocal(t, &dttest.FakeEmbedder{})
	repo, err := l.Loader().LoadDir(dttest.WriteTree(t, map[string]string{"notes.bin": "\x00\x01"}))
	require.NoError(t, err)

	res, err := l.Run(context.Background(), ingestion.Job{Repo: repo}, nil)
	assert.ErrorIs(t, err, ErrNoChunks)
	assert.NotNil(t, res.Ingest)
}

func TestLocal_EmbedFailure(t *testing.T) {
	boom := errors.New("worker down")
	provider := &dttest.FakeEmbedder{Err: boom}
	emb, err := embedder.New(provider, embedder.Config{Retry: embedder.RetryConfig{MaxRetries: 1}}, dttest.DiscardLogger())
	require.NoError(t, err)
	l, err := NewLocal(ingestion.DefaultConfig(), dttest.DiscardLogger(), WithEmbedder(emb))
	require.NoError(t, err)

	repo, err := l.Loader().LoadDir(dttest.WriteTree(t, map[string]string{"util.py": utilPy}))
	require.NoError(t, err)
	res, err := l.Run(context.Background(), ingestion.Job{Repo: repo}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, res.Files, 1)
	assert.Nil(t, res.Assembly)
}

func TestLocal_InvalidJob(t *testing.T) {
	l := newLocal(t, nil)
	repo, err := l.Loader().LoadDir(dttest.WriteTree(t, map[string]string{"util.py": utilPy}))
	require.NoError(t, err)
	_, err = l.Run(context.Background(), ingestion.Job{ID: "bad id!", Repo: repo}, nil)
	assert.Error(t, err)
}

func TestNewLocal_StageDependencies(t *testing.T) {
	_, err := NewLocal(ingestion.DefaultConfig(), dttest.DiscardLogger(),
		WithAssembly(assembly.NewService(assembly.DefaultConfig(), dttest.DiscardLogger())))
	assert.Error(t, err)

	_, err = NewLocal(ingestion.DefaultConfig(), dttest.DiscardLogger(),
		WithPacker(packer.New(docpack.CompressionFast, dttest.DiscardLogger())))
	assert.Error(t, err)

	_, err = NewLocal(ingestion.DefaultConfig(), dttest.DiscardLogger(),
		WithDocumenter(llm.NewDocumenter(&llm.MockProvider{}, llm.Config{}, dttest.DiscardLogger())))
	assert.Error(t, err)
}

func TestLocal_WithDocumenter(t *testing.T) {
	doc := llm.NewDocumenter(&llm.MockProvider{}, llm.Config{Concurrency: 2}, dttest.DiscardLogger())
	l := newLocal(t, &dttest.FakeEmbedder{}, WithDocumenter(doc))
	repo, err := l.Loader().LoadDir(dttest.WriteTree(t, map[string]string{
		"app.py":  appPy,
		"util.py": utilPy,
	}))
	require.NoError(t, err)

	res, err := l.Run(context.Background(), ingestion.Job{ID: "job_docs", Repo: repo}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Docs)
	assert.Len(t, res.Docs.Symbols, 3)
	assert.Empty(t, res.Docs.Warnings)

	dp, err := docpack.Read(res.Pack.DocpackBytes)
	require.NoError(t, err)
	for _, s := range dp.Nodes.Symbols {
		assert.Equal(t, "The function "+s.Name+".", s.Documentation.Summary)
	}
}

func TestApplyDocs(t *testing.T) {
	req := &packer.PackRequest{Nodes: []packer.NodeInfo{
		{SymbolID: "sym_a.py::ok", DocumentationSummary: "function ok in a.py"},
		{SymbolID: "sym_a.py::bad", DocumentationSummary: "function bad in a.py"},
		{SymbolID: "sym_a.py::missing", DocumentationSummary: "function missing in a.py"},
	}}
	docs := &llm.Documentation{Symbols: []llm.DocumentedSymbol{
		{SymbolID: "sym_a.py::ok", Summary: "Does the thing."},
		{SymbolID: "sym_a.py::bad", Summary: "[Documentation generation failed: timeout]"},
	}}

	ApplyDocs(req, docs)

	assert.Equal(t, "Does the thing.", req.Nodes[0].DocumentationSummary)
	assert.Equal(t, "function bad in a.py", req.Nodes[1].DocumentationSummary)
	assert.Equal(t, "function missing in a.py", req.Nodes[2].DocumentationSummary)
}
