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

package embedder

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the number of chunks per /embed call.
	DefaultBatchSize = 1024
	// DefaultCacheSize is the number of vectors kept in the LRU cache.
	DefaultCacheSize = 10000
	// DefaultWorkers bounds concurrent batches.
	DefaultWorkers = 4
)

// Response validation errors.
var (
	ErrMissingVector     = errors.New("embedder response is missing chunks")
	ErrUnexpectedVector  = errors.New("embedder response contains unknown chunk")
	ErrDuplicateVector   = errors.New("embedder response contains duplicate chunk")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Config configures an Embedder.
type Config struct {
	BatchSize int `yaml:"batch_size"`
	CacheSize int `yaml:"cache_size"`
	Workers   int `yaml:"workers"`
	// Dimensions, when set, is enforced on every vector. Otherwise the
	// first vector fixes it.
	Dimensions int         `yaml:"dimensions"`
	Retry      RetryConfig `yaml:"retry"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		CacheSize: DefaultCacheSize,
		Workers:   DefaultWorkers,
		Retry:     DefaultRetryConfig(),
	}
}

// Embedder batches chunks through a Provider.
type Embedder struct {
	provider Provider
	cfg      Config
	cache    *lru.Cache[[32]byte, []float32]
	logger   *slog.Logger

	mu   sync.Mutex
	dims int
}

// New creates an Embedder. Zero config fields take their defaults.
func New(provider Provider, cfg Config, logger *slog.Logger) (*Embedder, error) {
	if provider == nil {
		return nil, errors.New("embedder: nil provider")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	cfg.Retry = cfg.Retry.withDefaults()

	cache, err := lru.New[[32]byte, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create vector cache: %w", err)
	}
	return &Embedder{provider: provider, cfg: cfg, cache: cache, logger: logger, dims: cfg.Dimensions}, nil
}

// Dimensions returns the vector size seen so far, or 0.
func (e *Embedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// CacheLen returns the number of cached vectors.
func (e *Embedder) CacheLen() int { return e.cache.Len() }

// pending groups chunk ids that share identical content.
type pending struct {
	key [32]byte
	ids []string
	in  ChunkInput
}

// Embed returns a vector for every chunk id. Chunks whose content is cached
// or repeated within the call are sent at most once. Batches are named
// "<jobID>_batch_<n>".
func (e *Embedder) Embed(ctx context.Context, jobID string, chunks []ChunkInput) (map[string][]float32, error) {
	out := make(map[string][]float32, len(chunks))
	byKey := make(map[[32]byte]*pending)
	var todo []*pending
	hits := 0

	for _, c := range chunks {
		if _, done := out[c.ChunkID]; done {
			continue
		}
		key := sha256.Sum256([]byte(c.Content))
		if v, ok := e.cache.Get(key); ok {
			out[c.ChunkID] = clone(v)
			hits++
			continue
		}
		if p, ok := byKey[key]; ok {
			p.ids = append(p.ids, c.ChunkID)
			continue
		}
		p := &pending{key: key, ids: []string{c.ChunkID}, in: c}
		byKey[key] = p
		todo = append(todo, p)
	}
	if hits > 0 {
		recordCacheHits(hits)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for n, start := 0, 0; start < len(todo); n, start = n+1, start+e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(todo))
		batch := todo[start:end]
		req := Request{BatchID: fmt.Sprintf("%s_batch_%d", jobID, n)}
		for _, p := range batch {
			req.Chunks = append(req.Chunks, p.in)
		}

		g.Go(func() error {
			vectors, err := e.embedBatch(gctx, req)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range batch {
				v := vectors[p.in.ChunkID]
				e.cache.Add(p.key, v)
				for _, id := range p.ids {
					out[id] = clone(v)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("embedder.embed.done",
		"job_id", jobID,
		"chunks", len(chunks),
		"cache_hits", hits,
		"sent", len(todo),
	)
	return out, nil
}

// embedBatch calls the provider with retries and validates the answer.
func (e *Embedder) embedBatch(ctx context.Context, req Request) (map[string][]float32, error) {
	r := e.cfg.Retry
	var lastErr error
	for attempt := 0; attempt < r.MaxRetries; attempt++ {
		start := time.Now()
		resp, err := e.provider.EmbedBatch(ctx, req)
		if err == nil {
			vectors, verr := e.check(req, resp)
			if verr != nil {
				recordBatch("invalid", len(req.Chunks), time.Since(start))
				return nil, fmt.Errorf("batch %s: %w", req.BatchID, verr)
			}
			recordBatch("ok", len(req.Chunks), time.Since(start))
			return vectors, nil
		}
		recordBatch("error", len(req.Chunks), time.Since(start))
		lastErr = err
		if !retryable(err) || attempt == r.MaxRetries-1 {
			break
		}
		sleep := backoff(r.InitialBackoff, attempt, r.Multiplier, r.MaxBackoff)
		recordRetry()
		e.logger.Warn("embedder.retry", "batch_id", req.BatchID, "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("batch %s: %w", req.BatchID, lastErr)
}

// check enforces that every requested id comes back exactly once with a
// vector of the expected dimension.
func (e *Embedder) check(req Request, resp *Response) (map[string][]float32, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMissingVector)
	}
	want := make(map[string]bool, len(req.Chunks))
	for _, c := range req.Chunks {
		want[c.ChunkID] = true
	}

	got := make(map[string][]float32, len(resp.Vectors))
	for _, v := range resp.Vectors {
		if !want[v.ChunkID] {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedVector, v.ChunkID)
		}
		if _, dup := got[v.ChunkID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVector, v.ChunkID)
		}
		if err := e.checkDims(len(v.Vector)); err != nil {
			return nil, fmt.Errorf("%w (chunk %s)", err, v.ChunkID)
		}
		got[v.ChunkID] = v.Vector
	}
	if len(got) != len(want) {
		return nil, fmt.Errorf("%w: %d of %d returned", ErrMissingVector, len(got), len(want))
	}
	return got, nil
}

func (e *Embedder) checkDims(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if e.dims == 0 {
		e.dims = n
		return nil
	}
	if n != e.dims {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, e.dims, n)
	}
	return nil
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
