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

package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/kraklabs/doctown/pkg/embedder"
)

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// BuildZip builds a ZIP archive holding files.
func BuildZip(t testing.TB, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// WriteTree writes files under a fresh temporary directory and returns it.
// Names are slash-separated.
func WriteTree(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return dir
}

// ArchiveServer answers GET /<owner>/<repo>/archive/... with archive after
// delay, and 404 for every other path. It is closed when the test ends.
func ArchiveServer(t testing.TB, owner, repo string, archive []byte, delay time.Duration) *httptest.Server {
	t.Helper()
	prefix := fmt.Sprintf("/%s/%s/archive/", owner, repo)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// FakeEmbedder is an embedder.Provider returning a fixed-size vector
// derived from each chunk's content. Identical content gets identical
// vectors. Set Err to make every batch fail.
type FakeEmbedder struct {
	Dims int
	Err  error

	mu      sync.Mutex
	batches int
	chunks  int
}

// EmbedBatch implements embedder.Provider.
func (f *FakeEmbedder) EmbedBatch(_ context.Context, req embedder.Request) (*embedder.Response, error) {
	f.mu.Lock()
	f.batches++
	f.chunks += len(req.Chunks)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	dims := f.Dims
	if dims <= 0 {
		dims = 3
	}
	resp := &embedder.Response{BatchID: req.BatchID}
	for _, c := range req.Chunks {
		resp.Vectors = append(resp.Vectors, embedder.ChunkVector{ChunkID: c.ChunkID, Vector: contentVector(c.Content, dims)})
	}
	return resp, nil
}

// Calls returns the number of batches and chunks seen so far.
func (f *FakeEmbedder) Calls() (batches, chunks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches, f.chunks
}

// contentVector folds the bytes of s into dims buckets. The last component
// is fixed at 1 so no vector is all zeros.
func contentVector(s string, dims int) []float32 {
	v := make([]float32, dims)
	v[dims-1] = 1
	if dims == 1 {
		return v
	}
	for i, b := range []byte(s) {
		v[i%(dims-1)] += float32(b) / 255
	}
	return v
}
