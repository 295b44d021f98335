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
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/kraklabs/doctown/pkg/events"
)

const (
	// DefaultMaxFileSize is the largest file read by the filter gate.
	DefaultMaxFileSize int64 = 1 << 20
	// DefaultMaxRepoSize bounds the total uncompressed size of a repository.
	DefaultMaxRepoSize int64 = 100 << 20

	binarySniffLen = 8192
)

// DefaultIgnorePatterns are matched against every path component, either
// exactly or as a "*suffix" glob.
var DefaultIgnorePatterns = []string{
	// version control
	".git", ".svn", ".hg",
	// dependencies
	"node_modules", "vendor", "bower_components",
	// build outputs
	"target", "dist", "build", "out", "_build", ".next", ".nuxt",
	// python
	"__pycache__", ".venv", "venv", ".tox", ".eggs", "*.egg-info", ".pytest_cache", ".mypy_cache",
	// editors and OS files
	".idea", ".vscode", ".vs", "*.swp", "*.swo", ".DS_Store", "Thumbs.db",
	// coverage and caches
	"coverage", ".coverage", ".nyc_output", "htmlcov", ".cache", ".parcel-cache",
	// logs
	"*.log", "logs",
}

// DefaultLockFiles are skipped by exact base name.
var DefaultLockFiles = []string{
	"Cargo.lock", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "Gemfile.lock",
	"poetry.lock", "Pipfile.lock", "composer.lock", "go.sum", "flake.lock", "mix.lock",
}

// FilterConfig configures the filter gate.
type FilterConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	SkipHidden     bool     `yaml:"skip_hidden"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
	LockFiles      []string `yaml:"lock_files"`
	// Exclude holds doublestar globs matched against the whole path.
	Exclude []string `yaml:"exclude"`
}

// DefaultFilterConfig returns the stock gate.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MaxFileSize:    DefaultMaxFileSize,
		IgnorePatterns: DefaultIgnorePatterns,
		LockFiles:      DefaultLockFiles,
	}
}

// Decision is the outcome of the gate for one file: accepted, or skipped
// with exactly one reason.
type Decision struct {
	Reason events.SkipReason
	Detail string
}

// Accepted reports whether the file passed.
func (d Decision) Accepted() bool { return d.Reason == "" }

func (d Decision) String() string {
	switch d.Reason {
	case "":
		return "accepted"
	case events.SkipBinary:
		return "binary file"
	case events.SkipIgnorePattern:
		return "matches ignore pattern: " + d.Detail
	case events.SkipLockFile:
		return "lock file"
	case events.SkipTooLarge:
		return "file too large: " + d.Detail + " bytes"
	case events.SkipHidden:
		return "hidden file"
	case events.SkipUnsupportedLanguage:
		return "unsupported language"
	}
	return string(d.Reason)
}

var accept = Decision{}

func skip(reason events.SkipReason, detail string) Decision {
	return Decision{Reason: reason, Detail: detail}
}

// Filter applies the gate. It is immutable after construction and safe for
// concurrent use.
type Filter struct {
	cfg       FilterConfig
	exact     map[string]struct{}
	globs     []string
	lockFiles map[string]struct{}
	gitignore *ignore.GitIgnore
}

// NewFilter validates the configured globs and builds a Filter.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	f := &Filter{
		cfg:       cfg,
		exact:     make(map[string]struct{}),
		lockFiles: make(map[string]struct{}, len(cfg.LockFiles)),
	}
	for _, p := range cfg.IgnorePatterns {
		if strings.ContainsAny(p, "*?[{") {
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("invalid ignore pattern %q", p)
			}
			f.globs = append(f.globs, p)
			continue
		}
		f.exact[p] = struct{}{}
	}
	for _, g := range cfg.Exclude {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid exclude glob %q", g)
		}
	}
	for _, l := range cfg.LockFiles {
		f.lockFiles[l] = struct{}{}
	}
	return f, nil
}

// WithGitignore returns a copy of f that also skips paths matched by the
// given .gitignore lines.
func (f *Filter) WithGitignore(lines []string) *Filter {
	cp := *f
	cp.gitignore = ignore.CompileIgnoreLines(lines...)
	return &cp
}

// MaxFileSize returns the configured size limit.
func (f *Filter) MaxFileSize() int64 { return f.cfg.MaxFileSize }

// CheckPath runs the checks that need only the path and size, in order:
// size, hidden, lock file, ignore pattern, exclude glob, gitignore.
func (f *Filter) CheckPath(p string, size int64) Decision {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if size > f.cfg.MaxFileSize {
		return skip(events.SkipTooLarge, fmt.Sprint(size))
	}
	components := strings.Split(p, "/")
	if f.cfg.SkipHidden {
		for _, c := range components {
			if strings.HasPrefix(c, ".") && c != "." && c != ".." {
				return skip(events.SkipHidden, c)
			}
		}
	}
	if _, ok := f.lockFiles[components[len(components)-1]]; ok {
		return skip(events.SkipLockFile, components[len(components)-1])
	}
	for _, c := range components {
		if pattern, ok := f.matchIgnore(c); ok {
			return skip(events.SkipIgnorePattern, pattern)
		}
	}
	for _, g := range f.cfg.Exclude {
		if ok, _ := doublestar.Match(g, p); ok {
			return skip(events.SkipIgnorePattern, g)
		}
	}
	if f.gitignore != nil && f.gitignore.MatchesPath(p) {
		return skip(events.SkipIgnorePattern, ".gitignore")
	}
	return accept
}

func (f *Filter) matchIgnore(component string) (string, bool) {
	if _, ok := f.exact[component]; ok {
		return component, true
	}
	for _, g := range f.globs {
		if ok, _ := doublestar.Match(g, component); ok {
			return g, true
		}
	}
	return "", false
}

// CheckContent rejects content with a NUL byte in its first 8 KiB.
func CheckContent(content []byte) Decision {
	head := content
	if len(head) > binarySniffLen {
		head = head[:binarySniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return skip(events.SkipBinary, "")
	}
	return accept
}
