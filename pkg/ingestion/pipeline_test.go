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

package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/doctown/pkg/events"
	"github.com/kraklabs/doctown/pkg/grammar"
)

func newTestOrchestrator(t *testing.T, mutate func(*Config), opts ...Option) *Orchestrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 4
	if mutate != nil {
		mutate(&cfg)
	}
	o, err := NewOrchestrator(cfg, discardLogger(), opts...)
	require.NoError(t, err)
	return o
}

func loadZip(t *testing.T, files map[string]string) *Repo {
	t.Helper()
	repo, err := NewRepoLoader(0, discardLogger()).LoadZip(buildZip(t, files))
	require.NoError(t, err)
	return repo
}

// collect runs the job with a small channel and drains it the way a
// consumer must: until Run closes it.
func collect(t *testing.T, ctx context.Context, o *Orchestrator, job Job, capacity int) ([]events.Envelope, *Summary, error) {
	t.Helper()
	out := make(chan events.Envelope, capacity)

	var (
		summary *Summary
		runErr  error
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		summary, runErr = o.Run(ctx, job, out)
	}()

	var got []events.Envelope
	for env := range out {
		got = append(got, env)
	}
	<-done
	return got, summary, runErr
}

func ofType(envs []events.Envelope, typ events.EventType) []events.Envelope {
	var out []events.Envelope
	for _, e := range envs {
		if e.EventType == typ {
			out = append(out, e)
		}
	}
	return out
}

// assertStream checks the ordering invariants every job must satisfy.
func assertStream(t *testing.T, envs []events.Envelope) {
	t.Helper()
	require.NotEmpty(t, envs)
	assert.Equal(t, events.IngestStarted, envs[0].EventType)
	assert.Equal(t, events.IngestCompleted, envs[len(envs)-1].EventType)
	assert.Len(t, ofType(envs, events.IngestStarted), 1)
	assert.Len(t, ofType(envs, events.IngestCompleted), 1)

	for i, e := range envs {
		require.NoError(t, e.Validate(), "event %d (%s)", i, e.EventType)
		if i > 0 {
			assert.Greater(t, e.Sequence, envs[i-1].Sequence, "sequence must increase at %d", i)
		}
	}

	// Per file: file_detected comes before any of its chunks.
	detected := map[string]bool{}
	for _, e := range envs {
		switch p := e.Payload.(type) {
		case events.FileDetectedPayload:
			detected[p.FilePath] = true
		case events.ChunkCreatedPayload:
			assert.True(t, detected[p.FilePath], "chunk for %s before file_detected", p.FilePath)
		}
	}
}

func TestOrchestrator_MixedRepo(t *testing.T) {
	repo := loadZip(t, map[string]string{
		"demo-main/src/main.rs":       "fn main(){ helper(); } fn helper(){}",
		"demo-main/data.bin":          "ab\x00cd",
		"demo-main/node_modules/x.js": "module.exports = 1;",
		"demo-main/Cargo.lock":        "# generated",
	})
	o := newTestOrchestrator(t, nil)

	envs, summary, err := collect(t, context.Background(), o, Job{ID: "job_mixed01", RepoURL: "https://github.com/acme/demo", Repo: repo}, 2)
	require.NoError(t, err)
	assertStream(t, envs)

	detected := ofType(envs, events.IngestFileDetected)
	require.Len(t, detected, 1)
	fd := detected[0].Payload.(events.FileDetectedPayload)
	assert.Equal(t, "src/main.rs", fd.FilePath)
	assert.Equal(t, grammar.Rust, fd.Language)

	reasons := map[string]events.SkipReason{}
	for _, e := range ofType(envs, events.IngestFileSkipped) {
		p := e.Payload.(events.FileSkippedPayload)
		reasons[p.FilePath] = p.Reason
	}
	assert.Equal(t, map[string]events.SkipReason{
		"data.bin":          events.SkipBinary,
		"node_modules/x.js": events.SkipIgnorePattern,
		"Cargo.lock":        events.SkipLockFile,
	}, reasons)

	chunks := ofType(envs, events.IngestChunkCreated)
	require.Len(t, chunks, 2)
	names := []string{}
	for _, e := range chunks {
		p := e.Payload.(events.ChunkCreatedPayload)
		names = append(names, p.SymbolName)
		assert.Equal(t, "src/main.rs", p.FilePath)
	}
	assert.ElementsMatch(t, []string{"main", "helper"}, names)

	last := envs[len(envs)-1]
	assert.Equal(t, events.StatusSuccess, last.Status)
	completed := last.Payload.(events.IngestCompletedPayload)
	assert.Equal(t, 1, completed.FilesProcessed)
	assert.Equal(t, 3, completed.FilesSkipped)
	assert.Equal(t, 2, completed.ChunksCreated)
	assert.Empty(t, completed.Error)
	assert.Equal(t, []events.LanguageCount{{Language: grammar.Rust, FileCount: 1, ChunkCount: 2}}, completed.LanguageBreakdown)

	assert.Equal(t, events.StatusSuccess, summary.Status)
	assert.Equal(t, "job_mixed01", summary.JobID)
}

func TestOrchestrator_ParseErrorResilience(t *testing.T) {
	repo := loadZip(t, map[string]string{
		"r/good.rs": "fn ok(){}",
		"r/bad.rs":  "fn broken(){",
	})
	o := newTestOrchestrator(t, nil)

	envs, summary, err := collect(t, context.Background(), o, Job{RepoURL: "local", Repo: repo}, 1)
	require.NoError(t, err)
	assertStream(t, envs)

	perFile := map[string]int{}
	for _, e := range ofType(envs, events.IngestChunkCreated) {
		perFile[e.Payload.(events.ChunkCreatedPayload).FilePath]++
	}
	assert.GreaterOrEqual(t, perFile["good.rs"], 1)
	assert.GreaterOrEqual(t, perFile["bad.rs"], 1)

	assert.Equal(t, events.StatusSuccess, envs[len(envs)-1].Status)
	assert.Equal(t, 2, summary.FilesProcessed)
	assert.Equal(t, 0, summary.FilesSkipped)
}

func TestOrchestrator_FilterTotality(t *testing.T) {
	files := map[string]string{
		"r/src/lib.rs":        "pub fn lib() {}",
		"r/src/latin1.py":     "x = '\xe9'",
		"r/bin/tool":          "#!/usr/bin/env python3\nprint(1)\n",
		"r/README.md":         "# readme",
		"r/app/server.log":    "started",
		"r/web/index.ts":      "export function main(): void {}",
		"r/web/yarn.lock":     "# yarn",
		"r/web/empty.js":      "",
		"r/target/debug/a.rs": "fn a() {}",
	}
	o := newTestOrchestrator(t, nil)

	envs, summary, err := collect(t, context.Background(), o, Job{Repo: loadZip(t, files)}, 3)
	require.NoError(t, err)
	assertStream(t, envs)

	outcome := map[string]string{}
	for _, e := range envs {
		switch p := e.Payload.(type) {
		case events.FileDetectedPayload:
			_, dup := outcome[p.FilePath]
			assert.False(t, dup, "%s reported twice", p.FilePath)
			outcome[p.FilePath] = "accepted"
		case events.FileSkippedPayload:
			_, dup := outcome[p.FilePath]
			assert.False(t, dup, "%s reported twice", p.FilePath)
			outcome[p.FilePath] = string(p.Reason)
		}
	}
	assert.Equal(t, map[string]string{
		"src/lib.rs":        "accepted",
		"src/latin1.py":     string(events.SkipBinary),
		"bin/tool":          "accepted",
		"README.md":         string(events.SkipUnsupportedLanguage),
		"app/server.log":    string(events.SkipIgnorePattern),
		"web/index.ts":      "accepted",
		"web/yarn.lock":     string(events.SkipLockFile),
		"web/empty.js":      "accepted",
		"target/debug/a.rs": string(events.SkipIgnorePattern),
	}, outcome)
	assert.Equal(t, len(files), summary.FilesProcessed+summary.FilesSkipped)
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	repo := loadZip(t, map[string]string{"r/a.rs": "fn a() {}", "r/b.rs": "fn b() {}"})
	o := newTestOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	envs, summary, err := collect(t, ctx, o, Job{Repo: repo}, 4)
	require.ErrorIs(t, err, ErrCancelled)
	assertStream(t, envs)
	require.Len(t, envs, 2)

	last := envs[1]
	assert.Equal(t, events.StatusFailed, last.Status)
	assert.Equal(t, "cancelled", last.Payload.(events.IngestCompletedPayload).Error)
	assert.Equal(t, events.StatusFailed, summary.Status)
}

func TestOrchestrator_CancelMidRun(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 50; i++ {
		files[fmt.Sprintf("r/src/f%02d.rs", i)] = fmt.Sprintf("fn f%d() {}\nfn g%d() { f%d(); }\n", i, i, i)
	}
	o := newTestOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan events.Envelope, 1)

	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, runErr = o.Run(ctx, Job{Repo: loadZip(t, files)}, out)
	}()

	var envs []events.Envelope
	for env := range out {
		envs = append(envs, env)
		if env.EventType == events.IngestChunkCreated {
			cancel()
		}
	}
	<-done

	require.ErrorIs(t, runErr, ErrCancelled)
	assertStream(t, envs)
	last := envs[len(envs)-1]
	assert.Equal(t, events.StatusFailed, last.Status)
	assert.Equal(t, "cancelled", last.Payload.(events.IngestCompletedPayload).Error)
	assert.Less(t, len(ofType(envs, events.IngestChunkCreated)), 100)
}

func TestOrchestrator_FileHook(t *testing.T) {
	repo := loadZip(t, map[string]string{
		"r/src/main.rs": "fn main(){ helper(); } fn helper(){}",
		"r/notes.txt":   "skip me",
	})

	var (
		mu      sync.Mutex
		results []FileResult
	)
	o := newTestOrchestrator(t, nil, WithFileHook(func(fr FileResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, fr)
	}))

	_, _, err := collect(t, context.Background(), o, Job{Repo: repo}, 8)
	require.NoError(t, err)

	require.Len(t, results, 1)
	fr := results[0]
	assert.Equal(t, "src/main.rs", fr.Path)
	assert.Equal(t, grammar.Rust, fr.Language)
	assert.Len(t, fr.Result.Symbols, 2)
	assert.Len(t, fr.Chunks, 2)
	require.Len(t, fr.Result.Calls, 1)
	assert.True(t, fr.Result.Calls[0].IsResolved)
}

func TestOrchestrator_RespectGitignore(t *testing.T) {
	files := map[string]string{
		"r/.gitignore":       "*.gen.py\n",
		"r/pkg/model.gen.py": "x = 1",
		"r/pkg/model.py":     "y = 2",
	}
	o := newTestOrchestrator(t, func(c *Config) { c.RespectGitignore = true })

	envs, _, err := collect(t, context.Background(), o, Job{Repo: loadZip(t, files)}, 4)
	require.NoError(t, err)

	skipped := map[string]events.SkipReason{}
	for _, e := range ofType(envs, events.IngestFileSkipped) {
		p := e.Payload.(events.FileSkippedPayload)
		skipped[p.FilePath] = p.Reason
	}
	assert.Equal(t, events.SkipIgnorePattern, skipped["pkg/model.gen.py"])
	assert.NotContains(t, skipped, "pkg/model.py")
}

func TestOrchestrator_FetchesFromGitHub(t *testing.T) {
	archive := buildZip(t, map[string]string{"widgets-main/lib.py": "def hello():\n    return 1\n"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/widgets/archive/main.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	gh := NewGitHubClient(0, discardLogger(), WithBaseURLs(srv.URL, srv.URL))
	o := newTestOrchestrator(t, nil, WithGitHubClient(gh))

	envs, _, err := collect(t, context.Background(), o, Job{RepoURL: "github.com/acme/widgets.git", GitRef: "main"}, 4)
	require.NoError(t, err)
	assertStream(t, envs)

	assert.Equal(t, "https://github.com/acme/widgets", envs[0].Context.RepoURL)
	assert.Equal(t, "main", envs[0].Context.GitRef)
	chunks := ofType(envs, events.IngestChunkCreated)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0].Payload.(events.ChunkCreatedPayload).SymbolName)
}

func TestOrchestrator_FetchFailureCompletesFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	gh := NewGitHubClient(0, discardLogger(), WithBaseURLs(srv.URL, srv.URL))
	o := newTestOrchestrator(t, nil, WithGitHubClient(gh))

	envs, summary, err := collect(t, context.Background(), o, Job{RepoURL: "https://github.com/acme/gone"}, 4)
	require.ErrorIs(t, err, ErrRepoNotFound)
	assertStream(t, envs)
	require.Len(t, envs, 2)
	assert.Equal(t, events.StatusFailed, envs[1].Status)
	assert.NotEmpty(t, summary.Error)
}

func TestOrchestrator_RejectsInvalidJob(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	_, _, err := collect(t, context.Background(), o, Job{ID: "job_!", Repo: &Repo{}}, 1)
	assert.Error(t, err)

	envs, _, err := collect(t, context.Background(), o, Job{RepoURL: "https://example.com/a/b"}, 1)
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Empty(t, envs)
}
