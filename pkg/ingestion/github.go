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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrInvalidURL is returned for anything that is not a GitHub repository URL.
	ErrInvalidURL = errors.New("invalid repository url")
	// ErrRateLimited is returned when GitHub refuses a request for quota reasons.
	ErrRateLimited = errors.New("github rate limit exceeded")
	// ErrRepoNotFound is returned when the repository or ref does not exist.
	ErrRepoNotFound = errors.New("repository not found")
)

const (
	githubHost     = "github.com"
	defaultWebBase = "https://github.com"
	defaultAPIBase = "https://api.github.com"
	userAgent      = "doctown/0.1"
)

var (
	namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	shaPattern  = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
)

// GitHubURL identifies a repository and an optional ref.
type GitHubURL struct {
	Owner string
	Repo  string
	Ref   string
}

// ParseGitHubURL accepts https://github.com/o/r, github.com/o/r, a ".git"
// suffix, and /tree|commit|blob/<ref> suffixes. Refs may contain slashes.
func ParseGitHubURL(raw string) (*GitHubURL, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
	case strings.HasPrefix(raw, githubHost+"/"):
		raw = "https://" + raw
	default:
		return nil, fmt.Errorf("%w: must be a GitHub URL", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Host, githubHost) {
		return nil, fmt.Errorf("%w: must be a GitHub URL", ErrInvalidURL)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return nil, fmt.Errorf("%w: must include owner and repository name", ErrInvalidURL)
	}
	owner := segments[0]
	repo := strings.TrimSuffix(segments[1], ".git")
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("%w: owner and repository name cannot be empty", ErrInvalidURL)
	}
	if !namePattern.MatchString(owner) || !namePattern.MatchString(repo) {
		return nil, fmt.Errorf("%w: invalid owner or repository name", ErrInvalidURL)
	}

	g := &GitHubURL{Owner: owner, Repo: repo}
	if len(segments) >= 4 {
		switch segments[2] {
		case "tree", "commit", "blob":
			g.Ref = strings.Join(segments[3:], "/")
		}
	}
	return g, nil
}

// RefOrHead returns the ref, or "HEAD" when none was given.
func (g GitHubURL) RefOrHead() string {
	if g.Ref == "" {
		return "HEAD"
	}
	return g.Ref
}

// ArchiveURL returns the zipball URL for the ref.
func (g GitHubURL) ArchiveURL() string {
	return fmt.Sprintf("%s/%s/%s/archive/%s.zip", defaultWebBase, g.Owner, g.Repo, g.RefOrHead())
}

// CanonicalURL returns https://github.com/owner/repo.
func (g GitHubURL) CanonicalURL() string {
	return fmt.Sprintf("%s/%s/%s", defaultWebBase, g.Owner, g.Repo)
}

func (g GitHubURL) String() string { return g.CanonicalURL() }

// GitHubClient downloads archives and resolves refs.
type GitHubClient struct {
	httpClient *http.Client
	webBase    string
	apiBase    string
	maxSize    int64
	logger     *slog.Logger
}

// GitHubOption configures a GitHubClient.
type GitHubOption func(*GitHubClient)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHubClient) { g.httpClient = c }
}

// WithBaseURLs points the client at alternative web and API hosts.
func WithBaseURLs(web, api string) GitHubOption {
	return func(g *GitHubClient) {
		g.webBase = strings.TrimRight(web, "/")
		g.apiBase = strings.TrimRight(api, "/")
	}
}

// NewGitHubClient creates a client whose downloads are capped at maxSize.
func NewGitHubClient(maxSize int64, logger *slog.Logger, opts ...GitHubOption) *GitHubClient {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxRepoSize
	}
	g := &GitHubClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		webBase:    defaultWebBase,
		apiBase:    defaultAPIBase,
		maxSize:    maxSize,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GitHubClient) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	return req, nil
}

// Download fetches the repository archive into memory.
func (g *GitHubClient) Download(ctx context.Context, repo *GitHubURL) ([]byte, error) {
	archive := fmt.Sprintf("%s/%s/%s/archive/%s.zip", g.webBase, repo.Owner, repo.Repo, repo.RefOrHead())
	req, err := g.newRequest(ctx, archive)
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("download %s: %w", repo, err)
	}
	if resp.ContentLength > g.maxSize {
		return nil, fmt.Errorf("%w: archive is %d bytes (max %d)", ErrRepoTooLarge, resp.ContentLength, g.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if int64(len(data)) > g.maxSize {
		return nil, fmt.Errorf("%w: archive exceeded %d bytes during download", ErrRepoTooLarge, g.maxSize)
	}

	g.logger.Info("github.download.done",
		"repo", repo.String(),
		"ref", repo.RefOrHead(),
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

// ResolveRef maps a branch or tag to a commit SHA. A full SHA is returned
// unchanged.
func (g *GitHubClient) ResolveRef(ctx context.Context, repo *GitHubURL, ref string) (string, error) {
	if shaPattern.MatchString(ref) {
		return strings.ToLower(ref), nil
	}

	var branch struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	ok, err := g.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s/branches/%s", g.apiBase, repo.Owner, repo.Repo, ref), &branch)
	if err != nil {
		return "", err
	}
	if ok {
		return branch.Commit.SHA, nil
	}

	var tag struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	ok, err = g.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s/git/refs/tags/%s", g.apiBase, repo.Owner, repo.Repo, ref), &tag)
	if err != nil {
		return "", err
	}
	if ok {
		return tag.Object.SHA, nil
	}
	return "", fmt.Errorf("%w: could not resolve ref %q", ErrRepoNotFound, ref)
}

// getJSON decodes a 200 response into v. A 404 reports ok=false.
func (g *GitHubClient) getJSON(ctx context.Context, rawURL string, v any) (bool, error) {
	req, err := g.newRequest(ctx, rawURL)
	if err != nil {
		return false, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("github api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err := checkStatus(resp); err != nil {
		return false, err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("decode github response: %w", err)
	}
	return true, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrRepoNotFound
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return fmt.Errorf("%w: resets at %s", ErrRateLimited, resp.Header.Get("X-RateLimit-Reset"))
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
