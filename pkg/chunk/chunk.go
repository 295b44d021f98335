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

package chunk

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/kraklabs/doctown/pkg/extract"
	"github.com/kraklabs/doctown/pkg/grammar"
)

const (
	DefaultMaxChunkSize = 4096
	DefaultOverlapSize  = 256
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid chunk config")

// Config bounds chunk sizes in bytes.
type Config struct {
	MaxChunkSize int `yaml:"max_chunk_size" json:"max_chunk_size"`
	OverlapSize  int `yaml:"overlap_size" json:"overlap_size"`
}

// DefaultConfig returns 4096-byte chunks with 256 bytes of overlap.
func DefaultConfig() Config {
	return Config{MaxChunkSize: DefaultMaxChunkSize, OverlapSize: DefaultOverlapSize}
}

// Validate requires 0 <= OverlapSize < MaxChunkSize.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max_chunk_size must be positive, got %d", ErrInvalidConfig, c.MaxChunkSize)
	}
	if c.OverlapSize < 0 || c.OverlapSize >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap_size must be in [0, %d), got %d", ErrInvalidConfig, c.MaxChunkSize, c.OverlapSize)
	}
	return nil
}

// Metadata ties a chunk to the symbol it came from. Split fields are only
// set when a symbol (or file) needed more than one chunk.
type Metadata struct {
	SymbolKind      extract.SymbolKind `json:"symbol_kind,omitempty"`
	SymbolName      string             `json:"symbol_name,omitempty"`
	SymbolSignature string             `json:"symbol_signature,omitempty"`
	IsSplit         bool               `json:"is_split,omitempty"`
	SplitIndex      int                `json:"split_index,omitempty"`
	SplitTotal      int                `json:"split_total,omitempty"`
}

// Chunk is a slice of one source file.
type Chunk struct {
	ID        string            `json:"chunk_id"`
	Content   string            `json:"content"`
	FilePath  string            `json:"file_path"`
	Language  grammar.Language  `json:"language"`
	ByteRange extract.ByteRange `json:"byte_range"`
	Metadata  Metadata          `json:"metadata"`
}

// ID computes "chunk_" + hex of the first 8 bytes of
// SHA-256(path || start as u64 LE || end as u64 LE || content).
func ID(path string, r extract.ByteRange, content string) string {
	h := sha256.New()
	h.Write([]byte(path))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(r.Start))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(r.End))
	h.Write(buf[:])
	h.Write([]byte(content))
	sum := h.Sum(nil)
	return "chunk_" + hex.EncodeToString(sum[:8])
}

// Chunker turns one file plus its symbols into chunks.
type Chunker struct {
	cfg Config
}

// New validates cfg and returns a Chunker.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// MustNew is New for configs known to be valid.
func MustNew(cfg Config) *Chunker {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Config returns the chunker's configuration.
func (c *Chunker) Config() Config { return c.cfg }

// ChunkFile chunks content. With no symbols the whole file is chunked;
// otherwise every symbol gets its own chunk (or split run of chunks).
// Symbols whose range falls outside content are skipped.
func (c *Chunker) ChunkFile(path string, lang grammar.Language, content []byte, symbols []extract.Symbol) []Chunk {
	var out []Chunk
	_ = c.Each(path, lang, content, symbols, func(ch Chunk) error {
		out = append(out, ch)
		return nil
	})
	return out
}

// Each is ChunkFile in streaming form: fn sees every chunk the moment it is
// cut. The first error returned by fn stops chunking and is returned.
func (c *Chunker) Each(path string, lang grammar.Language, content []byte, symbols []extract.Symbol, fn func(Chunk) error) error {
	if len(content) == 0 {
		return nil
	}
	if len(symbols) == 0 {
		return c.emit(path, lang, content, extract.ByteRange{Start: 0, End: len(content)}, Metadata{}, fn)
	}
	for _, s := range symbols {
		r := s.Range
		if r.Start < 0 || r.End > len(content) || r.Start >= r.End {
			continue
		}
		meta := Metadata{
			SymbolKind:      s.Kind,
			SymbolName:      s.Name,
			SymbolSignature: s.Signature,
		}
		if err := c.emit(path, lang, content, r, meta, fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chunker) emit(path string, lang grammar.Language, content []byte, r extract.ByteRange, meta Metadata, fn func(Chunk) error) error {
	windows := Split(content, r, c.cfg)
	for i, w := range windows {
		m := meta
		if len(windows) > 1 {
			m.IsSplit = true
			m.SplitIndex = i
			m.SplitTotal = len(windows)
		}
		text := string(content[w.Start:w.End])
		err := fn(Chunk{
			ID:        ID(path, w, text),
			Content:   text,
			FilePath:  path,
			Language:  lang,
			ByteRange: w,
			Metadata:  m,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Split divides r into ceil(n/(Max-Overlap)) windows of at most
// MaxChunkSize bytes (before code-point nudging). Window i starts at
// r.Start + i*(Max-Overlap) and ends at min(start+Max, r.End), so the
// last window always ends at r.End and trailing windows may lie inside
// their predecessor. Starts move left and ends move right to the nearest
// code-point boundary without leaving r.
func Split(content []byte, r extract.ByteRange, cfg Config) []extract.ByteRange {
	n := r.Len()
	if n <= cfg.MaxChunkSize {
		return []extract.ByteRange{r}
	}
	eff := cfg.MaxChunkSize - cfg.OverlapSize
	total := (n + eff - 1) / eff

	out := make([]extract.ByteRange, 0, total)
	for i := 0; i < total; i++ {
		start := r.Start + i*eff
		end := min(start+cfg.MaxChunkSize, r.End)
		for start > r.Start && !boundary(content, start) {
			start--
		}
		for end < r.End && !boundary(content, end) {
			end++
		}
		out = append(out, extract.ByteRange{Start: start, End: end})
	}
	return out
}

func boundary(content []byte, i int) bool {
	return i >= len(content) || utf8.RuneStart(content[i])
}
