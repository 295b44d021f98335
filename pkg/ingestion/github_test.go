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

package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		owner string
		repo  string
		ref   string
	}{
		{"https", "https://github.com/rust-lang/rust", "rust-lang", "rust", ""},
		{"http", "http://github.com/owner/repo", "owner", "repo", ""},
		{"no scheme", "github.com/owner/repo", "owner", "repo", ""},
		{"git suffix", "https://github.com/owner/repo.git", "owner", "repo", ""},
		{"trailing slash", "https://github.com/owner/repo/", "owner", "repo", ""},
		{"tree ref", "https://github.com/rust-lang/rust/tree/master", "rust-lang", "rust", "master"},
		{"nested ref", "https://github.com/owner/repo/tree/feature/nested/branch", "owner", "repo", "feature/nested/branch"},
		{"commit ref", "https://github.com/owner/repo/commit/abc123", "owner", "repo", "abc123"},
		{"blob ref", "https://github.com/owner/repo/blob/v1.0/src/lib.rs", "owner", "repo", "v1.0/src/lib.rs"},
		{"other segment", "https://github.com/owner/repo/issues/12", "owner", "repo", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGitHubURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.owner, g.Owner)
			assert.Equal(t, tt.repo, g.Repo)
			assert.Equal(t, tt.ref, g.Ref)
		})
	}
}

func TestParseGitHubURL_Invalid(t *testing.T) {
	for _, input := range []string{
		"",
		"https://gitlab.com/owner/repo",
		"gitlab.com/owner/repo",
		"https://github.com/owner",
		"https://github.com/",
		"ftp.example.com/owner/repo",
		"https://github.com/own er/repo",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseGitHubURL(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidURL))
		})
	}
}

func TestGitHubURL_Derived(t *testing.T) {
	g := GitHubURL{Owner: "owner", Repo: "repo"}
	assert.Equal(t, "https://github.com/owner/repo/archive/HEAD.zip", g.ArchiveURL())
	assert.Equal(t, "https://github.com/owner/repo", g.CanonicalURL())
	assert.Equal(t, "https://github.com/owner/repo", g.String())

	g.Ref = "main"
	assert.Equal(t, "https://github.com/owner/repo/archive/main.zip", g.ArchiveURL())
}

func TestGitHubClient_Download(t *testing.T) {
	archive := buildZip(t, map[string]string{"repo-main/src/lib.rs": "pub fn lib() {}"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/owner/repo/archive/main.zip" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	c := NewGitHubClient(0, discardLogger(), WithBaseURLs(srv.URL, srv.URL))
	data, err := c.Download(context.Background(), &GitHubURL{Owner: "owner", Repo: "repo", Ref: "main"})
	require.NoError(t, err)
	assert.Equal(t, archive, data)

	_, err = c.Download(context.Background(), &GitHubURL{Owner: "owner", Repo: "missing"})
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestGitHubClient_DownloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	c := NewGitHubClient(1024, discardLogger(), WithBaseURLs(srv.URL, srv.URL))
	_, err := c.Download(context.Background(), &GitHubURL{Owner: "o", Repo: "r"})
	assert.ErrorIs(t, err, ErrRepoTooLarge)
}

func TestGitHubClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewGitHubClient(0, discardLogger(), WithBaseURLs(srv.URL, srv.URL))
	_, err := c.Download(context.Background(), &GitHubURL{Owner: "o", Repo: "r"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGitHubClient_ResolveRef(t *testing.T) {
	const branchSHA = "1111111111111111111111111111111111111111"
	const tagSHA = "2222222222222222222222222222222222222222"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/o/r/branches/main":
			_, _ = w.Write([]byte(`{"commit":{"sha":"` + branchSHA + `"}}`))
		case "/repos/o/r/git/refs/tags/v1.0.0":
			_, _ = w.Write([]byte(`{"object":{"sha":"` + tagSHA + `"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewGitHubClient(0, discardLogger(), WithBaseURLs(srv.URL, srv.URL))
	repo := &GitHubURL{Owner: "o", Repo: "r"}
	ctx := context.Background()

	sha, err := c.ResolveRef(ctx, repo, "main")
	require.NoError(t, err)
	assert.Equal(t, branchSHA, sha)

	sha, err = c.ResolveRef(ctx, repo, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, tagSHA, sha)

	full := "ABCDEF0123456789ABCDEF0123456789ABCDEF01"
	sha, err = c.ResolveRef(ctx, repo, full)
	require.NoError(t, err)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", sha)

	_, err = c.ResolveRef(ctx, repo, "nope")
	assert.ErrorIs(t, err, ErrRepoNotFound)
}
