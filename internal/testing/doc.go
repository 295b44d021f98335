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

// Package testing provides fixtures shared by doctown's package tests.
//
// Import it under an alias to keep the standard testing package usable:
//
//	import dttest "github.com/kraklabs/doctown/internal/testing"
//
//	func TestIngest(t *testing.T) {
//	    archive := dttest.BuildZip(t, map[string]string{
//	        "widgets-main/src/lib.rs": "pub fn run() {}",
//	    })
//	    srv := dttest.ArchiveServer(t, "acme", "widgets", archive, 0)
//	    gh := ingestion.NewGitHubClient(0, dttest.DiscardLogger(),
//	        ingestion.WithBaseURLs(srv.URL, srv.URL))
//	    // ...
//	}
//
// # Fixtures
//
//   - DiscardLogger: a slog logger that drops every record
//   - BuildZip: an in-memory ZIP archive from a path → content map
//   - WriteTree: the same map written under t.TempDir()
//   - ArchiveServer: an httptest server answering GitHub archive downloads
//   - FakeEmbedder: a deterministic embedder.Provider
package testing
