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

package events

import (
	"github.com/kraklabs/doctown/pkg/extract"
	"github.com/kraklabs/doctown/pkg/grammar"
)

// SkipReason explains why a file produced no chunks.
type SkipReason string

const (
	SkipBinary              SkipReason = "binary"
	SkipTooLarge            SkipReason = "too_large"
	SkipUnsupportedLanguage SkipReason = "unsupported_language"
	SkipIgnorePattern       SkipReason = "ignore_pattern"
	SkipLockFile            SkipReason = "lock_file"
	SkipHidden              SkipReason = "hidden"
	SkipParseError          SkipReason = "parse_error"
)

// IngestStartedPayload opens an ingest stream.
type IngestStartedPayload struct {
	RepoURL   string `json:"repo_url"`
	GitRef    string `json:"git_ref"`
	CommitSHA string `json:"commit_sha,omitempty"`
}

// FileDetectedPayload announces a file that passed the filter gate.
type FileDetectedPayload struct {
	FilePath  string           `json:"file_path"`
	Language  grammar.Language `json:"language"`
	SizeBytes int              `json:"size_bytes"`
}

// FileSkippedPayload reports a rejected file.
type FileSkippedPayload struct {
	FilePath string     `json:"file_path"`
	Reason   SkipReason `json:"reason"`
}

// ChunkCreatedPayload carries one chunk as soon as it exists.
type ChunkCreatedPayload struct {
	ChunkID    string             `json:"chunk_id"`
	FilePath   string             `json:"file_path"`
	Language   grammar.Language   `json:"language"`
	ByteRange  extract.ByteRange  `json:"byte_range"`
	SymbolKind extract.SymbolKind `json:"symbol_kind,omitempty"`
	SymbolName string             `json:"symbol_name,omitempty"`
	Content    string             `json:"content"`
}

// LanguageCount is one row of the completion breakdown.
type LanguageCount struct {
	Language   grammar.Language `json:"language"`
	FileCount  int              `json:"file_count"`
	ChunkCount int              `json:"chunk_count"`
}

// IngestCompletedPayload closes an ingest stream.
type IngestCompletedPayload struct {
	FilesProcessed    int             `json:"files_processed"`
	FilesSkipped      int             `json:"files_skipped"`
	ChunksCreated     int             `json:"chunks_created"`
	DurationMS        int64           `json:"duration_ms"`
	LanguageBreakdown []LanguageCount `json:"language_breakdown,omitempty"`
	Error             string          `json:"error,omitempty"`
}
