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

// Package docpack reads and writes docpacks: gzipped tar bundles holding a
// repository's symbol graph, nodes, clusters, source map and, optionally,
// chunk embeddings and symbol contexts.
//
// The writer is reproducible. Given the same documents and the same
// manifest created_at it produces byte-identical output, and the
// docpack id is the SHA-256 of the content entries (the manifest is
// excluded), so equal content always has an equal id.
package docpack

import (
	"errors"
	"fmt"
)

const (
	// SchemaVersion is the only manifest schema Read accepts.
	SchemaVersion = "docpack/1.0"
	// GeneratorVersion identifies the writer in the manifest.
	GeneratorVersion = "doctown-packer/1.0.0"
	// PipelineVersion identifies the pipeline in the manifest.
	PipelineVersion = "v5.0"
	// ChecksumAlgorithm names the content hash.
	ChecksumAlgorithm = "sha256"
	// IDPrefix precedes the hex checksum in a docpack id.
	IDPrefix = "sha256:"
)

// Entry names, in archive order.
const (
	ManifestFile       = "manifest.json"
	GraphFile          = "graph.json"
	NodesFile          = "nodes.json"
	ClustersFile       = "clusters.json"
	SourceMapFile      = "source_map.json"
	EmbeddingsFile     = "embeddings.bin"
	SymbolContextsFile = "symbol_contexts.json"
)

var requiredFiles = []string{ManifestFile, GraphFile, NodesFile, ClustersFile, SourceMapFile}

var (
	ErrMissingFile           = errors.New("docpack is missing a required file")
	ErrChecksumMismatch      = errors.New("docpack checksum mismatch")
	ErrSchemaVersionMismatch = errors.New("unsupported docpack schema version")
	ErrInvalidHeader         = errors.New("invalid embeddings header")
	ErrChunkNotFound         = errors.New("chunk not found in embeddings")
	ErrInvalidDimensions     = errors.New("embedding has wrong dimensions")
	ErrDuplicateChunk        = errors.New("chunk already has an embedding")
	ErrCorruptEmbeddings     = errors.New("embeddings data is corrupt")
)

// MissingFileError names the absent entry.
type MissingFileError struct {
	Name string
}

func (e *MissingFileError) Error() string        { return fmt.Sprintf("missing required file: %s", e.Name) }
func (e *MissingFileError) Is(target error) bool { return target == ErrMissingFile }

// ChecksumError reports the manifest checksum and the recomputed one.
type ChecksumError struct {
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}
func (e *ChecksumError) Is(target error) bool { return target == ErrChecksumMismatch }
