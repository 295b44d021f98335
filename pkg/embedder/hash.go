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
	"math"
)

// DefaultDimensions matches the embedding worker's model.
const DefaultDimensions = 384

// HashProvider produces deterministic unit vectors from content hashes. It
// carries no semantics and exists for offline runs and tests.
type HashProvider struct {
	Dimensions int
}

// EmbedBatch embeds every chunk locally.
func (h HashProvider) EmbedBatch(ctx context.Context, req Request) (*Response, error) {
	dims := h.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	out := &Response{BatchID: req.BatchID, Vectors: make([]ChunkVector, 0, len(req.Chunks))}
	for _, c := range req.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out.Vectors = append(out.Vectors, ChunkVector{ChunkID: c.ChunkID, Vector: hashVector(c.Content, dims)})
	}
	return out, nil
}

func hashVector(text string, dims int) []float32 {
	hash := djb2(text)
	v := make([]float32, dims)
	for i := range v {
		val := float32((hash+uint64(i)*7919)%10000) / 10000.0
		v[i] = val*2.0 - 1.0
	}
	return normalize(v)
}

func djb2(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
	}
	return v
}
