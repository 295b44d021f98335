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
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// Embeddings layout, little-endian:
//
//	0   magic "DOCTEMBD"
//	8   u32 version
//	12  u32 num_vectors
//	16  u32 dimensions
//	20  u32 index_offset
//	24  num_vectors*dimensions f32, row-major
//	index_offset: u32 num_entries, then per entry
//	    u32 id_len, id bytes, u32 vector byte offset
const (
	embeddingsMagic   = "DOCTEMBD"
	embeddingsVersion = 1
	headerSize        = 24
)

// EmbeddingsHeader is the fixed 24-byte prefix of embeddings.bin.
type EmbeddingsHeader struct {
	Version     uint32
	NumVectors  uint32
	Dimensions  uint32
	IndexOffset uint32
}

// EmbeddingsWriter accumulates vectors for embeddings.bin. It is not safe
// for concurrent use.
type EmbeddingsWriter struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	seen       map[string]struct{}
}

// NewEmbeddingsWriter returns a writer for vectors of the given size.
func NewEmbeddingsWriter(dimensions int) *EmbeddingsWriter {
	return &EmbeddingsWriter{dimensions: dimensions, seen: make(map[string]struct{})}
}

// Add appends the vector for chunkID. Vectors are written in the order
// they are added.
func (w *EmbeddingsWriter) Add(chunkID string, vector []float32) error {
	if len(vector) != w.dimensions {
		return fmt.Errorf("%w: %s has %d, want %d", ErrInvalidDimensions, chunkID, len(vector), w.dimensions)
	}
	if _, dup := w.seen[chunkID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateChunk, chunkID)
	}
	w.seen[chunkID] = struct{}{}
	w.ids = append(w.ids, chunkID)
	w.vectors = append(w.vectors, slices.Clone(vector))
	return nil
}

func (w *EmbeddingsWriter) Len() int        { return len(w.ids) }
func (w *EmbeddingsWriter) Dimensions() int { return w.dimensions }

// Bytes encodes the accumulated vectors.
func (w *EmbeddingsWriter) Bytes() []byte {
	vecBytes := len(w.ids) * w.dimensions * 4
	indexSize := 4
	for _, id := range w.ids {
		indexSize += 4 + len(id) + 4
	}
	buf := make([]byte, 0, headerSize+vecBytes+indexSize)

	buf = append(buf, embeddingsMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, embeddingsVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.ids)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(w.dimensions))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(headerSize+vecBytes))

	for _, vec := range w.vectors {
		for _, v := range vec {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.ids)))
	offset := uint32(headerSize)
	for _, id := range w.ids {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(id)))
		buf = append(buf, id...)
		buf = binary.LittleEndian.AppendUint32(buf, offset)
		offset += uint32(w.dimensions * 4)
	}
	return buf
}

// EmbeddingsReader looks vectors up by chunk id. It is immutable and safe
// for concurrent use.
type EmbeddingsReader struct {
	header EmbeddingsHeader
	data   []byte
	index  map[string]uint32
	ids    []string
}

// ReadEmbeddings parses embeddings.bin. The index is validated up front so
// that Vector never reads out of bounds.
func ReadEmbeddings(data []byte) (*EmbeddingsReader, error) {
	if len(data) < headerSize || string(data[:8]) != embeddingsMagic {
		return nil, ErrInvalidHeader
	}
	le := binary.LittleEndian
	h := EmbeddingsHeader{
		Version:     le.Uint32(data[8:]),
		NumVectors:  le.Uint32(data[12:]),
		Dimensions:  le.Uint32(data[16:]),
		IndexOffset: le.Uint32(data[20:]),
	}
	if h.Version != embeddingsVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidHeader, h.Version)
	}

	vecSize := uint64(h.Dimensions) * 4
	if uint64(h.IndexOffset) < headerSize+uint64(h.NumVectors)*vecSize || uint64(h.IndexOffset)+4 > uint64(len(data)) {
		return nil, fmt.Errorf("%w: index offset %d out of range", ErrCorruptEmbeddings, h.IndexOffset)
	}

	r := &EmbeddingsReader{header: h, data: data, index: make(map[string]uint32)}
	pos := uint64(h.IndexOffset)
	n := le.Uint32(data[pos:])
	pos += 4
	for i := uint32(0); i < n; i++ {
		if pos+4 > uint64(len(data)) {
			return nil, fmt.Errorf("%w: truncated index entry %d", ErrCorruptEmbeddings, i)
		}
		idLen := uint64(le.Uint32(data[pos:]))
		pos += 4
		if pos+idLen+4 > uint64(len(data)) {
			return nil, fmt.Errorf("%w: truncated index entry %d", ErrCorruptEmbeddings, i)
		}
		id := string(data[pos : pos+idLen])
		pos += idLen
		off := le.Uint32(data[pos:])
		pos += 4
		if uint64(off) < headerSize || uint64(off)+vecSize > uint64(h.IndexOffset) {
			return nil, fmt.Errorf("%w: vector offset %d for %s out of range", ErrCorruptEmbeddings, off, id)
		}
		if _, dup := r.index[id]; !dup {
			r.ids = append(r.ids, id)
		}
		r.index[id] = off
	}
	return r, nil
}

func (r *EmbeddingsReader) Header() EmbeddingsHeader { return r.header }
func (r *EmbeddingsReader) Dimensions() int          { return int(r.header.Dimensions) }
func (r *EmbeddingsReader) Len() int                 { return len(r.ids) }

// ChunkIDs returns the indexed chunk ids in file order.
func (r *EmbeddingsReader) ChunkIDs() []string { return slices.Clone(r.ids) }

// Vector returns a copy of the vector stored for chunkID.
func (r *EmbeddingsReader) Vector(chunkID string) ([]float32, error) {
	off, ok := r.index[chunkID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, chunkID)
	}
	out := make([]float32, r.header.Dimensions)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(r.data[int(off)+i*4:]))
	}
	return out, nil
}
