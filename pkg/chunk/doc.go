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

// Package chunk slices source files into size-bounded chunks.
//
// A chunk is either the source slice of one symbol or, for files without
// symbols, a slice of the whole file. Slices larger than MaxChunkSize are
// split into overlapping windows whose boundaries never fall inside a
// UTF-8 code point. Chunk ids are a pure function of the file path, byte
// range and content.
package chunk
