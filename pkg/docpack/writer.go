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

package docpack

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Compression selects the gzip level of the archive.
type Compression string

const (
	CompressionFast     Compression = "fast"
	CompressionBalanced Compression = "balanced"
	CompressionBest     Compression = "best"
)

// ParseCompression maps a level name to a Compression. The empty string
// means balanced.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompressionBalanced, nil
	case CompressionFast, CompressionBalanced, CompressionBest:
		return c, nil
	}
	return "", fmt.Errorf("unknown compression level %q (want fast, balanced or best)", s)
}

func (c Compression) gzipLevel() int {
	switch c {
	case CompressionFast:
		return gzip.BestSpeed
	case CompressionBest:
		return gzip.BestCompression
	}
	return gzip.DefaultCompression
}

// entryModTime stamps every archive entry so the tar bytes depend only on
// content.
var entryModTime = time.Unix(0, 0).UTC()

// Content is the set of documents a docpack holds. Embeddings and
// SymbolContexts are optional.
type Content struct {
	Graph          Graph
	Nodes          Nodes
	Clusters       Clusters
	SourceMap      SourceMap
	Embeddings     *EmbeddingsWriter
	SymbolContexts *SymbolContexts
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompression sets the gzip level.
func WithCompression(c Compression) WriterOption {
	return func(w *Writer) { w.compression = c }
}

// WithLogger sets the writer's logger.
func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// Writer serializes docpacks.
type Writer struct {
	compression Compression
	logger      *slog.Logger
}

// NewWriter returns a Writer using balanced compression by default.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{compression: CompressionBalanced, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type archiveEntry struct {
	name string
	data []byte
}

// Write serializes c under m and returns the gzipped archive together with
// the finalized manifest (checksum, docpack id and optional flags set).
func (w *Writer) Write(m Manifest, c Content) ([]byte, Manifest, error) {
	entries := make([]archiveEntry, 0, 7)
	add := func(name string, v any) error {
		data, err := marshalDocument(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		entries = append(entries, archiveEntry{name: name, data: data})
		return nil
	}
	if err := add(GraphFile, c.Graph); err != nil {
		return nil, m, err
	}
	if err := add(NodesFile, c.Nodes); err != nil {
		return nil, m, err
	}
	if err := add(ClustersFile, c.Clusters); err != nil {
		return nil, m, err
	}
	if err := add(SourceMapFile, c.SourceMap); err != nil {
		return nil, m, err
	}
	if c.Embeddings != nil {
		entries = append(entries, archiveEntry{name: EmbeddingsFile, data: c.Embeddings.Bytes()})
	}
	if c.SymbolContexts != nil {
		if err := add(SymbolContextsFile, c.SymbolContexts); err != nil {
			return nil, m, err
		}
	}

	sum := contentChecksum(entries)
	m.Checksum = Checksum{Algorithm: ChecksumAlgorithm, Value: sum}
	m.DocpackID = IDPrefix + sum
	m.Optional = OptionalFeatures{
		HasEmbeddings:     c.Embeddings != nil,
		HasSymbolContexts: c.SymbolContexts != nil,
	}

	manifest, err := marshalDocument(m)
	if err != nil {
		return nil, m, fmt.Errorf("encode %s: %w", ManifestFile, err)
	}
	entries = append([]archiveEntry{{name: ManifestFile, data: manifest}}, entries...)

	out, err := buildArchive(entries, w.compression.gzipLevel())
	if err != nil {
		return nil, m, err
	}
	recordWrite(len(out))
	w.logger.Debug("docpack.write.done", "docpack_id", m.DocpackID, "bytes", len(out), "entries", len(entries))
	return out, m, nil
}

// contentChecksum hashes every entry in order. The manifest must not be
// among them.
func contentChecksum(entries []archiveEntry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write(e.data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func buildArchive(entries []archiveEntry, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.data)),
			ModTime:  entryModTime,
			Format:   tar.FormatUSTAR,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("tar header %s: %w", e.name, err)
		}
		if _, err := tw.Write(e.data); err != nil {
			return nil, fmt.Errorf("tar write %s: %w", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}
