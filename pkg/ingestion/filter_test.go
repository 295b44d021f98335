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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/doctown/pkg/events"
)

func newTestFilter(t *testing.T, mutate func(*FilterConfig)) *Filter {
	t.Helper()
	cfg := DefaultFilterConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := NewFilter(cfg)
	require.NoError(t, err)
	return f
}

func TestFilter_CheckPath(t *testing.T) {
	f := newTestFilter(t, nil)

	tests := []struct {
		name   string
		path   string
		size   int64
		reason events.SkipReason
	}{
		{"source file", "src/main.rs", 120, ""},
		{"node_modules", "node_modules/x.js", 10, events.SkipIgnorePattern},
		{"nested vendor", "third_party/vendor/lib.go", 10, events.SkipIgnorePattern},
		{"suffix glob", "server.log", 10, events.SkipIgnorePattern},
		{"egg-info dir", "pkg.egg-info/PKG-INFO", 10, events.SkipIgnorePattern},
		{"cargo lock", "Cargo.lock", 10, events.SkipLockFile},
		{"nested lock", "web/package-lock.json", 10, events.SkipLockFile},
		{"too large", "src/huge.rs", DefaultMaxFileSize + 1, events.SkipTooLarge},
		{"exactly at limit", "src/edge.rs", DefaultMaxFileSize, ""},
		{"hidden allowed by default", ".github/workflows/ci.yml", 10, ""},
		{"leading slash", "/src/lib.rs", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.CheckPath(tt.path, tt.size)
			assert.Equal(t, tt.reason, d.Reason, d.String())
			assert.Equal(t, tt.reason == "", d.Accepted())
		})
	}
}

func TestFilter_SizeCheckedFirst(t *testing.T) {
	f := newTestFilter(t, nil)
	d := f.CheckPath("node_modules/huge.js", DefaultMaxFileSize*2)
	assert.Equal(t, events.SkipTooLarge, d.Reason)
}

func TestFilter_SkipHidden(t *testing.T) {
	f := newTestFilter(t, func(c *FilterConfig) { c.SkipHidden = true })

	assert.Equal(t, events.SkipHidden, f.CheckPath(".github/workflows/ci.yml", 10).Reason)
	assert.Equal(t, events.SkipHidden, f.CheckPath("src/.env", 10).Reason)
	assert.True(t, f.CheckPath("src/env.py", 10).Accepted())
}

func TestFilter_ExcludeGlobs(t *testing.T) {
	f := newTestFilter(t, func(c *FilterConfig) { c.Exclude = []string{"**/*_test.go", "docs/**"} })

	assert.Equal(t, events.SkipIgnorePattern, f.CheckPath("pkg/api/server_test.go", 10).Reason)
	assert.Equal(t, events.SkipIgnorePattern, f.CheckPath("docs/guide/intro.py", 10).Reason)
	assert.True(t, f.CheckPath("pkg/api/server.go", 10).Accepted())
}

func TestFilter_Gitignore(t *testing.T) {
	base := newTestFilter(t, nil)
	f := base.WithGitignore([]string{"# generated", "*.tmp"})

	assert.Equal(t, events.SkipIgnorePattern, f.CheckPath("a/b/cache.tmp", 10).Reason)
	assert.True(t, f.CheckPath("a/b/cache.py", 10).Accepted())
	assert.True(t, base.CheckPath("a/b/cache.tmp", 10).Accepted(), "base filter must be unchanged")
}

func TestFilter_InvalidPatterns(t *testing.T) {
	_, err := NewFilter(FilterConfig{IgnorePatterns: []string{"[unclosed"}})
	assert.Error(t, err)

	_, err = NewFilter(FilterConfig{Exclude: []string{"src/[a-"}})
	assert.Error(t, err)
}

func TestFilter_ZeroMaxSizeUsesDefault(t *testing.T) {
	f, err := NewFilter(FilterConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxFileSize, f.MaxFileSize())
}

func TestCheckContent(t *testing.T) {
	assert.True(t, CheckContent([]byte("fn main() {}\n")).Accepted())
	assert.True(t, CheckContent(nil).Accepted())
	assert.Equal(t, events.SkipBinary, CheckContent([]byte{0x7f, 'E', 'L', 'F', 0, 1}).Reason)

	late := append(bytes.Repeat([]byte("a"), binarySniffLen), 0)
	assert.True(t, CheckContent(late).Accepted(), "NUL beyond the sniff window is ignored")
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "accepted", Decision{}.String())
	assert.Equal(t, "binary file", skip(events.SkipBinary, "").String())
	assert.Equal(t, "matches ignore pattern: node_modules", skip(events.SkipIgnorePattern, "node_modules").String())
	assert.Equal(t, "file too large: 2048 bytes", skip(events.SkipTooLarge, "2048").String())
	assert.Equal(t, "lock file", skip(events.SkipLockFile, "Cargo.lock").String())
}
