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

// Package embedder talks to the embedding worker.
//
// The worker contract is POST {url}/embed with
//
//	{"batch_id": "...", "chunks": [{"chunk_id": "...", "content": "..."}]}
//
// answered by
//
//	{"batch_id": "...", "vectors": [{"chunk_id": "...", "vector": [...]}]}
//
// and GET {url}/health. Every chunk sent must come back exactly once, and
// all vectors must share one dimension.
//
// Embedder sits in front of any Provider and adds batching, bounded
// parallelism, retries with jittered backoff, and an LRU cache keyed by the
// SHA-256 of chunk content so identical chunks are embedded once.
package embedder
