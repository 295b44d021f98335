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

// Package ingestion turns a repository into a stream of ingest events.
//
// An Orchestrator loads a repository (a GitHub archive, an in-memory ZIP or
// a local directory), runs every file through the filter gate, extracts
// symbols with Tree-sitter and cuts symbol-aligned chunks. Progress is
// reported as events.Envelope values on a caller-supplied channel.
//
// # Pipeline Overview
//
//  1. Fetch: download https://github.com/<owner>/<repo>/archive/<ref>.zip
//     with a bounded body, or use the Repo supplied with the Job
//  2. Filter: size, hidden, lock file, ignore pattern, user exclude globs,
//     then .gitignore when enabled
//  3. Read: binary and UTF-8 checks, then language detection
//  4. Extract: symbols, imports and calls (package extract)
//  5. Chunk: split each symbol's range under the size limit (package chunk)
//
// Files are processed by a bounded worker set. Event order within one file
// is fixed (detected, then its chunks); across files it is not.
//
// # Quick Start
//
//	o, err := ingestion.NewOrchestrator(ingestion.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//
//	out := make(chan events.Envelope, 100)
//	go func() {
//	    for env := range out {
//	        handle(env)
//	    }
//	}()
//	summary, err := o.Run(ctx, ingestion.Job{
//	    RepoURL: "https://github.com/owner/repo",
//	    GitRef:  "main",
//	}, out)
//
// Run always closes out. Once the job is accepted it always emits
// ingest.started first and ingest.completed last, including on fetch
// failure and cancellation. Consumers must drain out until it is closed.
//
// # Local Sources
//
// RepoLoader indexes a ZIP archive or a directory without extracting to
// disk. Set Job.Repo to ingest it; RepoURL then defaults to "local":
//
//	repo, err := o.Loader().LoadDir("/path/to/code")
//	summary, err := o.Run(ctx, ingestion.Job{Repo: repo}, out)
//
// WithFileHook receives the full extraction and chunk output of every
// processed file, for callers that go on to embed and assemble in process.
//
// # Configuration
//
//	cfg := ingestion.DefaultConfig()
//	cfg.Filter.Exclude = []string{"**/*_test.go", "docs/**"}
//	cfg.Filter.SkipHidden = true
//	cfg.RespectGitignore = true
//	cfg.Chunk.MaxChunkSize = 2048
//
// # Metrics
//
// The package registers Prometheus collectors on first use:
// doctown_ingest_files_total{result}, doctown_ingest_chunks_total,
// doctown_ingest_file_seconds and doctown_ingest_jobs_total{status}.
package ingestion
