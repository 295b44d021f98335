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

// Package assembly turns embedded chunks and extracted symbols into a
// clustered symbol graph.
//
// A run has four phases:
//
//  1. KMeans groups chunk vectors (k-means++ seeding, fixed seed) into
//     ChooseK(N) clusters, each named by a Labeler.
//  2. A Graph gets one node per symbol and calls, imports and related
//     edges. Related edges link symbols whose embeddings have cosine
//     similarity of at least 0.7, up to five per symbol.
//  3. Degree centrality is stored on every node.
//  4. BuildContexts summarises each symbol's neighbourhood for the
//     documentation stage.
//
// Service.Assemble drives the phases for one request and records the
// assembly.* events of the run.
package assembly
