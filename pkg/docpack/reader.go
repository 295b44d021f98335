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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// MaxEntrySize bounds a single archive entry on read.
const MaxEntrySize = 1 << 30

// Docpack is a parsed and verified docpack.
type Docpack struct {
	Manifest       Manifest
	Graph          Graph
	Nodes          Nodes
	Clusters       Clusters
	SourceMap      SourceMap
	Embeddings     *EmbeddingsReader
	SymbolContexts *SymbolContexts
}

// ReadFile reads and verifies the docpack at path.
func ReadFile(path string) (*Docpack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(data)
}

// Read decompresses data, checks that every required entry is present,
// recomputes the content checksum against the manifest and verifies the
// schema version. No partial result is returned on error.
func Read(data []byte) (*Docpack, error) {
	files, err := readArchive(data)
	if err != nil {
		return nil, err
	}
	for _, name := range requiredFiles {
		if _, ok := files[name]; !ok {
			recordRead("missing_file")
			return nil, &MissingFileError{Name: name}
		}
	}

	var dp Docpack
	decode := func(name string, v any) error {
		if err := json.Unmarshal(files[name], v); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		return nil
	}
	if err := errors.Join(
		decode(ManifestFile, &dp.Manifest),
		decode(GraphFile, &dp.Graph),
		decode(NodesFile, &dp.Nodes),
		decode(ClustersFile, &dp.Clusters),
		decode(SourceMapFile, &dp.SourceMap),
	); err != nil {
		recordRead("invalid")
		return nil, err
	}

	entries := []archiveEntry{
		{GraphFile, files[GraphFile]},
		{NodesFile, files[NodesFile]},
		{ClustersFile, files[ClustersFile]},
		{SourceMapFile, files[SourceMapFile]},
	}
	if raw, ok := files[EmbeddingsFile]; ok {
		emb, err := ReadEmbeddings(raw)
		if err != nil {
			recordRead("invalid")
			return nil, fmt.Errorf("decode %s: %w", EmbeddingsFile, err)
		}
		dp.Embeddings = emb
		entries = append(entries, archiveEntry{EmbeddingsFile, raw})
	}
	if raw, ok := files[SymbolContextsFile]; ok {
		dp.SymbolContexts = &SymbolContexts{}
		if err := decode(SymbolContextsFile, dp.SymbolContexts); err != nil {
			recordRead("invalid")
			return nil, err
		}
		entries = append(entries, archiveEntry{SymbolContextsFile, raw})
	}

	if sum := contentChecksum(entries); sum != dp.Manifest.Checksum.Value {
		recordRead("checksum_mismatch")
		return nil, &ChecksumError{Expected: dp.Manifest.Checksum.Value, Actual: sum}
	}
	if dp.Manifest.SchemaVersion != SchemaVersion {
		recordRead("schema_mismatch")
		return nil, fmt.Errorf("%w: got %q, want %q", ErrSchemaVersionMismatch, dp.Manifest.SchemaVersion, SchemaVersion)
	}
	recordRead("ok")
	return &dp, nil
}

// readArchive gunzips data and returns the regular-file entries by name.
func readArchive(data []byte) (map[string][]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		recordRead("corrupt")
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			recordRead("corrupt")
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if hdr.Size > MaxEntrySize {
			recordRead("corrupt")
			return nil, fmt.Errorf("entry %s is %d bytes, limit %d", hdr.Name, hdr.Size, MaxEntrySize)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			recordRead("corrupt")
			return nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		files[hdr.Name] = body
	}
	// Drain so that a damaged gzip trailer is reported.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		recordRead("corrupt")
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return files, nil
}
