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

import "time"

// DefaultEmbeddingDimensions is recorded when a docpack carries no
// embeddings.
const DefaultEmbeddingDimensions = 384

// Manifest describes a docpack. Field order is the serialized key order.
type Manifest struct {
	SchemaVersion string           `json:"schema_version"`
	DocpackID     string           `json:"docpack_id"`
	CreatedAt     string           `json:"created_at"`
	Generator     Generator        `json:"generator"`
	Source        Source           `json:"source"`
	Statistics    Statistics       `json:"statistics"`
	Checksum      Checksum         `json:"checksum"`
	Optional      OptionalFeatures `json:"optional"`
}

type Generator struct {
	Version         string `json:"version"`
	PipelineVersion string `json:"pipeline_version"`
}

type Source struct {
	RepoURL    string `json:"repo_url"`
	GitRef     string `json:"git_ref"`
	CommitHash string `json:"commit_hash,omitempty"`
}

type Statistics struct {
	FileCount           int `json:"file_count"`
	SymbolCount         int `json:"symbol_count"`
	ClusterCount        int `json:"cluster_count"`
	EmbeddingDimensions int `json:"embedding_dimensions"`
}

type Checksum struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type OptionalFeatures struct {
	HasEmbeddings     bool `json:"has_embeddings"`
	HasSymbolContexts bool `json:"has_symbol_contexts"`
}

// NewManifest returns a manifest stamped with the current time. The
// checksum, docpack id and optional flags are filled in by the Writer.
func NewManifest(src Source, stats Statistics) Manifest {
	return NewManifestAt(src, stats, time.Now().UTC().Format(time.RFC3339))
}

// NewManifestAt is NewManifest with a fixed created_at, for reproducible
// output.
func NewManifestAt(src Source, stats Statistics, createdAt string) Manifest {
	if stats.EmbeddingDimensions == 0 {
		stats.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	return Manifest{
		SchemaVersion: SchemaVersion,
		CreatedAt:     createdAt,
		Generator: Generator{
			Version:         GeneratorVersion,
			PipelineVersion: PipelineVersion,
		},
		Source:     src,
		Statistics: stats,
		Checksum:   Checksum{Algorithm: ChecksumAlgorithm},
	}
}
