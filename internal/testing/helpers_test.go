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
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/doctown/pkg/embedder"
)

func TestBuildZip(t *testing.T) {
	data := BuildZip(t, map[string]string{"r/a.go": "package a", "r/b/c.py": "x = 1"})

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		got[f.Name] = string(body)
	}
	assert.Equal(t, map[string]string{"r/a.go": "package a", "r/b/c.py": "x = 1"}, got)
}

func TestWriteTree(t *testing.T) {
	dir := WriteTree(t, map[string]string{"src/main.rs": "fn main() {}"})
	body, err := os.ReadFile(filepath.Join(dir, "src", "main.rs"))
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", string(body))
}

func TestArchiveServer(t *testing.T) {
	srv := ArchiveServer(t, "acme", "widgets", []byte("zipdata"), 0)

	resp, err := http.Get(srv.URL + "/acme/widgets/archive/main.zip")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "zipdata", string(body))

	resp, err = http.Get(srv.URL + "/acme/other/archive/main.zip")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFakeEmbedder(t *testing.T) {
	f := &FakeEmbedder{Dims: 4}
	resp, err := f.EmbedBatch(context.Background(), embedder.Request{
		BatchID: "b1",
		Chunks: []embedder.ChunkInput{
			{ChunkID: "c1", Content: "alpha"},
			{ChunkID: "c2", Content: "alpha"},
			{ChunkID: "c3", Content: "beta"},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Vectors, 3)
	assert.Equal(t, "b1", resp.BatchID)
	assert.Len(t, resp.Vectors[0].Vector, 4)
	assert.Equal(t, resp.Vectors[0].Vector, resp.Vectors[1].Vector)
	assert.NotEqual(t, resp.Vectors[0].Vector, resp.Vectors[2].Vector)
	assert.Equal(t, float32(1), resp.Vectors[2].Vector[3])

	batches, chunks := f.Calls()
	assert.Equal(t, 1, batches)
	assert.Equal(t, 3, chunks)
}

func TestFakeEmbedder_Error(t *testing.T) {
	boom := errors.New("down")
	f := &FakeEmbedder{Err: boom}
	_, err := f.EmbedBatch(context.Background(), embedder.Request{})
	assert.ErrorIs(t, err, boom)
}
