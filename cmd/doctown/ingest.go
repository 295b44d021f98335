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

package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/doctown/internal/config"
	"github.com/kraklabs/doctown/internal/errors"
	"github.com/kraklabs/doctown/internal/output"
	"github.com/kraklabs/doctown/internal/ui"
	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/embedder"
	"github.com/kraklabs/doctown/pkg/events"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/llm"
	"github.com/kraklabs/doctown/pkg/packer"
	"github.com/kraklabs/doctown/pkg/pipeline"
)

// ingestOptions holds the parsed 'ingest' flags.
type ingestOptions struct {
	source      string
	jobID       string
	gitRef      string
	out         string
	embed       bool
	embedderURL string
	pack        string
	generate    bool
	llmProvider string
	workers     int
	compression string
	createdAt   string
	metricsAddr string
}

// ingestReport is the --json summary of a local run.
type ingestReport struct {
	JobID          string                 `json:"job_id"`
	RepoURL        string                 `json:"repo_url"`
	GitRef         string                 `json:"git_ref"`
	Status         events.Status          `json:"status"`
	FilesProcessed int                    `json:"files_processed"`
	FilesSkipped   int                    `json:"files_skipped"`
	ChunksCreated  int                    `json:"chunks_created"`
	SkipReasons    map[string]int         `json:"skip_reasons,omitempty"`
	Languages      []events.LanguageCount `json:"languages"`
	DurationMS     int64                  `json:"duration_ms"`
	ChunksFile     string                 `json:"chunks_file,omitempty"`
	Embedded       int                    `json:"embedded,omitempty"`
	Dimensions     int                    `json:"dimensions,omitempty"`
	Clusters       int                    `json:"clusters,omitempty"`
	Nodes          int                    `json:"nodes,omitempty"`
	Edges          int                    `json:"edges,omitempty"`
	Documented     int                    `json:"documented,omitempty"`
	DocWarnings    []string               `json:"doc_warnings,omitempty"`
	LLMTokens      int                    `json:"llm_tokens,omitempty"`
	DocpackFile    string                 `json:"docpack_file,omitempty"`
	DocpackID      string                 `json:"docpack_id,omitempty"`
	DocpackBytes   int                    `json:"docpack_bytes,omitempty"`
}

// runIngest executes the 'ingest' command: it runs the ingest pipeline in
// process over a ZIP archive, a directory or a GitHub URL.
//
// With --embed the chunks are sent to the embedding worker and assembled
// into a symbol graph. --generate asks the configured LLM for a summary
// of every symbol. --pack additionally writes the docpack. Both imply
// --embed.
//
// Examples:
//
//	doctown ingest ./repo.zip --out chunks.jsonl
//	doctown ingest https://github.com/owner/repo --git-ref v1.2.0 --pack repo.docpack
func runIngest(args []string, globals GlobalFlags) {
	opts := ingestOptions{}
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	fs.StringVar(&opts.jobID, "job-id", "", "Job id (default: generated)")
	fs.StringVar(&opts.gitRef, "git-ref", "", "Branch, tag or commit for GitHub sources (default: HEAD)")
	fs.StringVarP(&opts.out, "out", "o", "", "Write chunks as JSON lines to this file ('-' for stdout)")
	fs.BoolVar(&opts.embed, "embed", false, "Embed chunks and assemble the symbol graph")
	fs.StringVar(&opts.embedderURL, "embedder-url", "", "Embedding worker base URL (default from config)")
	fs.StringVar(&opts.pack, "pack", "", "Write a docpack to this file (implies --embed)")
	fs.BoolVar(&opts.generate, "generate", false, "Generate symbol documentation with an LLM (implies --embed)")
	fs.StringVar(&opts.llmProvider, "llm-provider", "", "LLM provider: openai, ollama or mock (default from config)")
	fs.IntVar(&opts.workers, "workers", 0, "Parallel file workers (default from config)")
	fs.StringVar(&opts.compression, "compression", "", "Docpack compression: fast, balanced or best")
	fs.StringVar(&opts.createdAt, "created-at", "", "Fixed RFC 3339 created_at for reproducible docpacks")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doctown ingest <zip|dir|github-url> [options]

Ingests a repository locally. Files are filtered, parsed and chunked;
progress is shown on an interactive terminal.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  doctown ingest ./repo.zip --out chunks.jsonl
  doctown ingest . --embed
  doctown ingest https://github.com/owner/repo --pack repo.docpack
  doctown ingest . --generate --llm-provider ollama --pack repo.docpack
`)
	}
	parseArgs(fs, args)

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Expected exactly one source",
			fmt.Sprintf("got %d arguments", fs.NArg()),
			"Pass a .zip file, a directory or a GitHub URL: doctown ingest <source>",
		), globals.JSON)
	}
	opts.source = fs.Arg(0)
	if opts.pack != "" || opts.generate {
		opts.embed = true
	}

	cfg := loadConfig(globals)
	if opts.workers > 0 {
		cfg.Ingest.Workers = opts.workers
	}
	if opts.embedderURL != "" {
		cfg.Embedder.URL = opts.embedderURL
	}
	if opts.compression != "" {
		cfg.Packer.Compression = opts.compression
	}
	if opts.llmProvider != "" {
		cfg.LLM.Provider = opts.llmProvider
	}
	if err := cfg.Validate(); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	logger := newLogger(cfg, globals)
	ctx, cancel := signalContext(logger)
	defer cancel()

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr, logger)
	}

	local := newLocalPipeline(ctx, cfg, opts, logger, globals)
	job, total := resolveSource(local, opts, globals)

	var lines *output.Lines
	if opts.out != "" {
		w, closeOut := openOutput(opts.out, globals)
		defer closeOut()
		lines = output.NewLines(w)
	}

	progress := ui.NewIngestProgress(ui.NewProgressConfig(globals.Quiet || globals.JSON, globals.NoColor), total)
	var writeErr error
	observe := func(env events.Envelope) {
		progress.Observe(env)
		if lines == nil || writeErr != nil || env.EventType != events.IngestChunkCreated {
			return
		}
		writeErr = lines.Write(env.Payload)
	}

	res, err := local.Run(ctx, job, observe)
	if lines != nil {
		if ferr := lines.Flush(); ferr != nil && writeErr == nil {
			writeErr = ferr
		}
	}
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if writeErr != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot write chunks",
			writeErr.Error(),
			"Check that the --out location is writable",
			writeErr,
		), globals.JSON)
	}

	if opts.pack != "" && res.Pack != nil {
		if err := os.WriteFile(opts.pack, res.Pack.DocpackBytes, 0o644); err != nil {
			errors.FatalError(errors.NewInternalError(
				"Cannot write docpack",
				err.Error(),
				"Check that the --pack location is writable",
				err,
			), globals.JSON)
		}
	}

	report := buildReport(res, progress, opts)
	if lines != nil {
		logger.Debug("ingest.chunks.written", "path", opts.out, "lines", lines.Count())
	}
	if globals.JSON {
		if err := output.JSON(report); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	printReport(report)
}

// newLocalPipeline wires the stages requested by opts. The embedding
// worker is health-checked up front so a missing worker fails fast.
func newLocalPipeline(ctx context.Context, cfg *config.Config, opts ingestOptions, logger *slog.Logger, globals GlobalFlags) *pipeline.Local {
	var popts []pipeline.Option
	if opts.embed {
		client := embedder.NewClient(cfg.Embedder.URL, cfg.Embedder.Timeout, logger)
		hctx, hcancel := context.WithTimeout(ctx, 10*time.Second)
		err := client.Health(hctx)
		hcancel()
		if err != nil {
			errors.FatalError(errors.NewNetworkError(
				"Embedder is not available",
				err.Error(),
				fmt.Sprintf("Start the embedding worker at %s or pass --embedder-url", cfg.Embedder.URL),
				err,
			), globals.JSON)
		}

		emb, err := embedder.New(client, cfg.Embedder.Batch, logger)
		if err != nil {
			errors.FatalError(err, globals.JSON)
		}
		popts = append(popts,
			pipeline.WithEmbedder(emb),
			pipeline.WithAssembly(assembly.NewService(cfg.Assembly, logger)),
		)
	}
	if opts.generate {
		provider, err := llm.NewProvider(cfg.LLM)
		if err != nil {
			errors.FatalError(errors.NewConfigError(
				"Cannot create LLM provider",
				err.Error(),
				"Set llm.provider to openai, ollama or mock",
				err,
			), globals.JSON)
		}
		popts = append(popts, pipeline.WithDocumenter(llm.NewDocumenter(provider, cfg.LLM, logger)))
	}
	if opts.pack != "" {
		popts = append(popts, pipeline.WithPacker(packer.New(cfg.Compression(), logger)))
	}
	if opts.createdAt != "" {
		popts = append(popts, pipeline.WithTimestamp(opts.createdAt))
	}

	local, err := pipeline.NewLocal(cfg.Ingest, logger, popts...)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot start the ingest pipeline",
			err.Error(),
			"Check the ingest section of the config file",
			err,
		), globals.JSON)
	}
	return local
}

// resolveSource turns the positional argument into a job. Existing paths
// are loaded locally; anything else is treated as a GitHub URL. total is
// the file count for the progress bar, or -1 when unknown.
func resolveSource(local *pipeline.Local, opts ingestOptions, globals GlobalFlags) (ingestion.Job, int) {
	job := ingestion.Job{ID: opts.jobID, GitRef: opts.gitRef}

	info, err := os.Stat(opts.source)
	switch {
	case err == nil && info.IsDir():
		repo, err := local.Loader().LoadDir(opts.source)
		if err != nil {
			errors.FatalError(err, globals.JSON)
		}
		job.Repo = repo
	case err == nil:
		if !strings.EqualFold(filepath.Ext(opts.source), ".zip") {
			errors.FatalError(errors.NewInputError(
				"Unsupported source file",
				fmt.Sprintf("%s is not a .zip archive", opts.source),
				"Pass a .zip file, a directory or a GitHub URL",
			), globals.JSON)
		}
		data, err := os.ReadFile(opts.source)
		if err != nil {
			errors.FatalError(err, globals.JSON)
		}
		repo, err := local.Loader().LoadZip(data)
		if err != nil {
			errors.FatalError(err, globals.JSON)
		}
		job.Repo = repo
	case stderrors.Is(err, os.ErrNotExist) && !strings.Contains(opts.source, "github.com"):
		errors.FatalError(errors.NewNotFoundError(
			"Source not found",
			fmt.Sprintf("%s does not exist and is not a GitHub URL", opts.source),
			"Pass a .zip file, a directory or a URL like https://github.com/owner/repo",
		), globals.JSON)
	default:
		job.RepoURL = opts.source
		return job, -1
	}
	return job, len(job.Repo.Entries)
}

// openOutput opens the JSONL destination; "-" is stdout.
func openOutput(path string, globals GlobalFlags) (io.Writer, func()) {
	if path == "-" {
		return os.Stdout, func() {}
	}
	f, err := os.Create(path)
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot create output file",
			err.Error(),
			"Check that the --out location is writable",
			err,
		), globals.JSON)
	}
	return f, func() { _ = f.Close() }
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics.http.error", "err", err)
	}
}

func buildReport(res *pipeline.Result, progress *ui.IngestProgress, opts ingestOptions) ingestReport {
	s := res.Ingest
	r := ingestReport{
		JobID:          s.JobID,
		RepoURL:        res.RepoURL,
		GitRef:         res.GitRef,
		Status:         s.Status,
		FilesProcessed: s.FilesProcessed,
		FilesSkipped:   s.FilesSkipped,
		ChunksCreated:  s.ChunksCreated,
		Languages:      s.Languages,
		DurationMS:     s.Duration.Milliseconds(),
	}
	if reasons := progress.SkipReasons(); len(reasons) > 0 {
		r.SkipReasons = make(map[string]int, len(reasons))
		for k, v := range reasons {
			r.SkipReasons[string(k)] = v
		}
	}
	if opts.out != "" && opts.out != "-" {
		r.ChunksFile = opts.out
	}
	r.Embedded = len(res.Vectors)
	for _, v := range res.Vectors {
		r.Dimensions = len(v)
		break
	}
	if a := res.Assembly; a != nil {
		r.Clusters, r.Nodes, r.Edges = a.Stats.ClusterCount, a.Stats.NodeCount, a.Stats.EdgeCount
	}
	if d := res.Docs; d != nil {
		r.Documented = len(d.Symbols) - len(d.Warnings)
		r.DocWarnings = d.Warnings
		r.LLMTokens = d.TotalTokens()
	}
	if p := res.Pack; p != nil {
		r.DocpackFile = opts.pack
		r.DocpackID = p.DocpackID
		r.DocpackBytes = len(p.DocpackBytes)
	}
	return r
}

func printReport(r ingestReport) {
	ui.Header("Ingest complete")
	ui.Row("Job:", r.JobID)
	ui.Row("Repository:", r.RepoURL)
	ui.Row("Ref:", r.GitRef)
	ui.Row("Files:", fmt.Sprintf("%s processed, %s skipped", ui.CountText(r.FilesProcessed), ui.CountText(r.FilesSkipped)))
	ui.Row("Chunks:", ui.CountText(r.ChunksCreated))
	ui.Row("Duration:", (time.Duration(r.DurationMS) * time.Millisecond).String())

	if len(r.Languages) > 0 {
		ui.SubHeader("Languages")
		for _, l := range r.Languages {
			ui.Row(string(l.Language)+":", fmt.Sprintf("%d files, %d chunks", l.FileCount, l.ChunkCount))
		}
	}
	if len(r.SkipReasons) > 0 {
		ui.SubHeader("Skipped")
		reasons := make([]string, 0, len(r.SkipReasons))
		for k := range r.SkipReasons {
			reasons = append(reasons, k)
		}
		sort.Strings(reasons)
		for _, k := range reasons {
			ui.Row(k+":", r.SkipReasons[k])
		}
	}
	if r.Embedded > 0 {
		ui.SubHeader("Assembly")
		ui.Row("Embedded:", fmt.Sprintf("%d chunks, %d dimensions", r.Embedded, r.Dimensions))
		ui.Row("Graph:", fmt.Sprintf("%d clusters, %d nodes, %d edges", r.Clusters, r.Nodes, r.Edges))
	}
	if r.Documented > 0 || len(r.DocWarnings) > 0 {
		ui.Row("Documented:", fmt.Sprintf("%d symbols, %d tokens", r.Documented, r.LLMTokens))
		for _, w := range r.DocWarnings {
			ui.Warning(w)
		}
	}
	if r.ChunksFile != "" {
		ui.Successf("Chunks written to %s", r.ChunksFile)
	}
	if r.DocpackFile != "" {
		ui.Successf("Docpack %s written to %s (%s)", r.DocpackID, r.DocpackFile, ui.ByteText(int64(r.DocpackBytes)))
	}
}

