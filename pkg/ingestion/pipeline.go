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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/doctown/pkg/chunk"
	"github.com/kraklabs/doctown/pkg/events"
	"github.com/kraklabs/doctown/pkg/extract"
	"github.com/kraklabs/doctown/pkg/grammar"
	"github.com/kraklabs/doctown/pkg/ids"
)

// ErrCancelled is returned by Run when the job's context is cancelled.
var ErrCancelled = errors.New("cancelled")

// ProducerVersion is stamped into every envelope's meta.
const ProducerVersion = "doctown-ingest/0.1.0"

// Config configures an Orchestrator.
type Config struct {
	Filter           FilterConfig `yaml:"filter"`
	Chunk            chunk.Config `yaml:"chunk"`
	MaxRepoSize      int64        `yaml:"max_repo_size"`
	Workers          int          `yaml:"workers"`
	RespectGitignore bool         `yaml:"respect_gitignore"`
	// ResolveCommit asks GitHub for the ref's commit SHA before starting.
	ResolveCommit bool `yaml:"resolve_commit"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Filter:      DefaultFilterConfig(),
		Chunk:       chunk.DefaultConfig(),
		MaxRepoSize: DefaultMaxRepoSize,
		Workers:     runtime.GOMAXPROCS(0),
	}
}

// Job is one ingest request. When Repo is nil, RepoURL must be a GitHub URL
// and the archive is downloaded.
type Job struct {
	ID        string
	RepoURL   string
	GitRef    string
	CommitSHA string
	TraceID   string
	Repo      *Repo
}

// FileResult is handed to the file hook after a file has been fully
// processed.
type FileResult struct {
	Path     string
	Language grammar.Language
	Content  []byte
	Result   *extract.Result
	Chunks   []chunk.Chunk
}

// Summary mirrors the terminal event.
type Summary struct {
	JobID          string
	Status         events.Status
	FilesProcessed int
	FilesSkipped   int
	ChunksCreated  int
	Languages      []events.LanguageCount
	Duration       time.Duration
	Error          string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGitHubClient replaces the archive downloader.
func WithGitHubClient(c *GitHubClient) Option {
	return func(o *Orchestrator) { o.github = c }
}

// WithGrammarPool selects the parser pool.
func WithGrammarPool(p *grammar.Pool) Option {
	return func(o *Orchestrator) { o.pool = p }
}

// WithFileHook registers fn to receive every processed file. fn is called
// from worker goroutines and must be safe for concurrent use.
func WithFileHook(fn func(FileResult)) Option {
	return func(o *Orchestrator) { o.onFile = fn }
}

// Orchestrator drives repositories through parse, extract and chunk and
// streams the resulting events.
type Orchestrator struct {
	cfg       Config
	logger    *slog.Logger
	filter    *Filter
	loader    *RepoLoader
	github    *GitHubClient
	pool      *grammar.Pool
	extractor *extract.Extractor
	chunker   *chunk.Chunker
	onFile    func(FileResult)
}

// NewOrchestrator validates cfg and builds an Orchestrator.
func NewOrchestrator(cfg Config, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxRepoSize <= 0 {
		cfg.MaxRepoSize = DefaultMaxRepoSize
	}

	filter, err := NewFilter(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("filter config: %w", err)
	}
	chunker, err := chunk.New(cfg.Chunk)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:     cfg,
		logger:  logger,
		filter:  filter,
		loader:  NewRepoLoader(cfg.MaxRepoSize, logger),
		chunker: chunker,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.github == nil {
		o.github = NewGitHubClient(cfg.MaxRepoSize, logger)
	}
	o.extractor = extract.New(o.pool, logger)
	return o, nil
}

// Loader returns the orchestrator's repository loader.
func (o *Orchestrator) Loader() *RepoLoader { return o.loader }

// emitter serialises sends so that channel order equals sequence order
// across all workers of one job.
type emitter struct {
	mu    sync.Mutex
	out   chan<- events.Envelope
	ectx  events.Context
	trace string
}

func (e *emitter) envelope(t events.EventType, payload any) events.Envelope {
	env := events.New(t, e.ectx, payload)
	env.Meta.ProducerVersion = ProducerVersion
	return env.WithTrace(e.trace)
}

// send blocks until the consumer accepts the event or ctx is done.
func (e *emitter) send(ctx context.Context, t events.EventType, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case e.out <- e.envelope(t, payload):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// always sends regardless of cancellation. It is used for the started and
// completed events, which every job emits exactly once; consumers must
// drain the channel until it is closed.
func (e *emitter) always(t events.EventType, payload any, status events.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out <- e.envelope(t, payload).WithStatus(status)
}

// tally accumulates per-job counters across workers.
type tally struct {
	mu        sync.Mutex
	processed int
	skipped   int
	chunks    int
	files     map[grammar.Language]int
	langChunk map[grammar.Language]int
}

func newTally() *tally {
	return &tally{files: make(map[grammar.Language]int), langChunk: make(map[grammar.Language]int)}
}

func (t *tally) skip() {
	t.mu.Lock()
	t.skipped++
	t.mu.Unlock()
}

func (t *tally) chunk(lang grammar.Language) {
	t.mu.Lock()
	t.chunks++
	t.langChunk[lang]++
	t.mu.Unlock()
}

func (t *tally) file(lang grammar.Language) {
	t.mu.Lock()
	t.processed++
	t.files[lang]++
	t.mu.Unlock()
}

func (t *tally) breakdown() []events.LanguageCount {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []events.LanguageCount
	for _, l := range grammar.All {
		if t.files[l] == 0 {
			continue
		}
		out = append(out, events.LanguageCount{Language: l, FileCount: t.files[l], ChunkCount: t.langChunk[l]})
	}
	return out
}

// Run ingests one job, streaming envelopes into out, and closes out when
// done. Exactly one started and one completed event are sent; completed is
// sent even on failure or cancellation, so the consumer must keep reading
// until the channel is closed. A job with an invalid id is rejected before
// any event is sent.
func (o *Orchestrator) Run(ctx context.Context, job Job, out chan<- events.Envelope) (*Summary, error) {
	defer close(out)

	if job.ID == "" {
		job.ID = ids.NewJobID()
	}
	if err := ids.ValidateJobID(job.ID); err != nil {
		return nil, err
	}
	if job.GitRef == "" {
		job.GitRef = "HEAD"
	}

	start := time.Now()
	var gh *GitHubURL
	if job.Repo != nil && job.RepoURL == "" {
		job.RepoURL = "local"
	}
	if job.Repo == nil {
		var err error
		if gh, err = ParseGitHubURL(job.RepoURL); err != nil {
			return nil, err
		}
		if gh.Ref == "" && job.GitRef != "HEAD" {
			gh.Ref = job.GitRef
		}
		job.RepoURL = gh.CanonicalURL()
		if o.cfg.ResolveCommit && job.CommitSHA == "" {
			sha, err := o.github.ResolveRef(ctx, gh, gh.RefOrHead())
			if err != nil {
				o.logger.Warn("ingest.resolve_ref.error", "job_id", job.ID, "ref", gh.RefOrHead(), "err", err)
			}
			job.CommitSHA = sha
		}
	}

	em := &emitter{
		out:   out,
		ectx:  events.Context{JobID: job.ID, RepoURL: job.RepoURL, GitRef: job.GitRef},
		trace: job.TraceID,
	}
	tl := newTally()

	o.logger.Info("ingest.job.started", "job_id", job.ID, "repo_url", job.RepoURL, "git_ref", job.GitRef)

	em.always(events.IngestStarted, events.IngestStartedPayload{
		RepoURL:   job.RepoURL,
		GitRef:    job.GitRef,
		CommitSHA: job.CommitSHA,
	}, "")
	repo := job.Repo
	var err error
	if repo == nil {
		repo, err = o.fetch(ctx, gh)
	}
	if err == nil {
		err = o.process(ctx, repo, em, tl)
	}

	summary := &Summary{
		JobID:     job.ID,
		Status:    events.StatusSuccess,
		Languages: tl.breakdown(),
		Duration:  time.Since(start),
	}
	summary.FilesProcessed, summary.FilesSkipped, summary.ChunksCreated = tl.processed, tl.skipped, tl.chunks

	switch {
	case ctx.Err() != nil:
		summary.Status, summary.Error = events.StatusFailed, ErrCancelled.Error()
		err = ErrCancelled
	case err != nil:
		summary.Status, summary.Error = events.StatusFailed, err.Error()
	}

	em.always(events.IngestCompleted, events.IngestCompletedPayload{
		FilesProcessed:    summary.FilesProcessed,
		FilesSkipped:      summary.FilesSkipped,
		ChunksCreated:     summary.ChunksCreated,
		DurationMS:        summary.Duration.Milliseconds(),
		LanguageBreakdown: summary.Languages,
		Error:             summary.Error,
	}, summary.Status)
	recordJob(summary.Status)
	observeJob(summary.Duration)

	o.logger.Info("ingest.job.completed",
		"job_id", job.ID,
		"status", summary.Status,
		"files_processed", summary.FilesProcessed,
		"files_skipped", summary.FilesSkipped,
		"chunks", summary.ChunksCreated,
		"duration_ms", summary.Duration.Milliseconds(),
		"error", summary.Error,
	)
	return summary, err
}

func (o *Orchestrator) fetch(ctx context.Context, gh *GitHubURL) (*Repo, error) {
	start := time.Now()
	data, err := o.github.Download(ctx, gh)
	if err != nil {
		return nil, err
	}
	observeFetch(time.Since(start))
	return o.loader.LoadZip(data)
}

func (o *Orchestrator) process(ctx context.Context, repo *Repo, em *emitter, tl *tally) error {
	filter := o.filter
	if o.cfg.RespectGitignore {
		if data, err := repo.ReadFile(".gitignore"); err == nil {
			filter = filter.WithGitignore(strings.Split(string(data), "\n"))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, e := range repo.Entries {
		if gctx.Err() != nil {
			break
		}
		e := e
		g.Go(func() error { return o.processFile(gctx, filter, e, em, tl) })
	}
	return g.Wait()
}

func (o *Orchestrator) skipFile(ctx context.Context, em *emitter, tl *tally, p string, d Decision) error {
	o.logger.Debug("ingest.file.skipped", "file", p, "reason", d.String())
	if err := em.send(ctx, events.IngestFileSkipped, events.FileSkippedPayload{FilePath: p, Reason: d.Reason}); err != nil {
		return err
	}
	tl.skip()
	recordFileSkipped(d.Reason)
	return nil
}

func (o *Orchestrator) processFile(ctx context.Context, filter *Filter, e Entry, em *emitter, tl *tally) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	if d := filter.CheckPath(e.Path, e.Size); !d.Accepted() {
		return o.skipFile(ctx, em, tl, e.Path, d)
	}

	content, err := readEntry(e, filter.MaxFileSize())
	if err != nil {
		o.logger.Warn("ingest.file.read_error", "file", e.Path, "err", err)
		return o.skipFile(ctx, em, tl, e.Path, skip(events.SkipParseError, err.Error()))
	}
	if int64(len(content)) > filter.MaxFileSize() {
		return o.skipFile(ctx, em, tl, e.Path, skip(events.SkipTooLarge, fmt.Sprint(len(content))))
	}
	if d := CheckContent(content); !d.Accepted() {
		return o.skipFile(ctx, em, tl, e.Path, d)
	}
	if !utf8.Valid(content) {
		return o.skipFile(ctx, em, tl, e.Path, skip(events.SkipBinary, "invalid utf-8"))
	}
	lang, ok := grammar.Detect(e.Path, content)
	if !ok {
		return o.skipFile(ctx, em, tl, e.Path, skip(events.SkipUnsupportedLanguage, ""))
	}

	if err := em.send(ctx, events.IngestFileDetected, events.FileDetectedPayload{
		FilePath:  e.Path,
		Language:  lang,
		SizeBytes: len(content),
	}); err != nil {
		return err
	}

	res, err := o.extractor.File(ctx, e.Path, content, lang)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.logger.Warn("ingest.extract.error", "file", e.Path, "err", err)
		res = &extract.Result{Path: e.Path, Language: lang}
	}
	if res.SyntaxErrors > 0 {
		recordSyntaxErrors()
	}

	var chunks []chunk.Chunk
	err = o.chunker.Each(e.Path, lang, content, res.Symbols, func(c chunk.Chunk) error {
		if err := em.send(ctx, events.IngestChunkCreated, events.ChunkCreatedPayload{
			ChunkID:    c.ID,
			FilePath:   c.FilePath,
			Language:   c.Language,
			ByteRange:  c.ByteRange,
			SymbolKind: c.Metadata.SymbolKind,
			SymbolName: c.Metadata.SymbolName,
			Content:    c.Content,
		}); err != nil {
			return err
		}
		tl.chunk(lang)
		recordChunk()
		if o.onFile != nil {
			chunks = append(chunks, c)
		}
		return nil
	})
	if err != nil {
		return err
	}

	tl.file(lang)
	recordFileProcessed()
	observeFile(time.Since(start))
	if o.onFile != nil {
		o.onFile(FileResult{Path: e.Path, Language: lang, Content: content, Result: res, Chunks: chunks})
	}
	return nil
}

// readEntry reads at most limit+1 bytes so that an entry whose declared
// size understated its content is still caught.
func readEntry(e Entry, limit int64) ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, limit+1))
}
