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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrRepoTooLarge is returned when a repository exceeds the size budget.
var ErrRepoTooLarge = errors.New("repository too large")

// Entry is one regular file in a repository. Path is slash-separated and
// relative to the repository root.
type Entry struct {
	Path string
	Size int64
	open func() (io.ReadCloser, error)
}

// Open returns the file's content stream.
func (e Entry) Open() (io.ReadCloser, error) { return e.open() }

// Repo is a loaded repository tree, from a ZIP archive or a local
// directory. Entries are sorted by path.
type Repo struct {
	Entries   []Entry
	TotalSize int64
}

// ReadFile reads an entry by path, or returns fs.ErrNotExist.
func (r *Repo) ReadFile(p string) ([]byte, error) {
	for _, e := range r.Entries {
		if e.Path != p {
			continue
		}
		rc, err := e.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fs.ErrNotExist
}

// RepoLoader opens repositories and enforces the total size budget.
type RepoLoader struct {
	logger      *slog.Logger
	maxRepoSize int64
}

// NewRepoLoader creates a loader. maxRepoSize <= 0 selects the default.
func NewRepoLoader(maxRepoSize int64, logger *slog.Logger) *RepoLoader {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRepoSize <= 0 {
		maxRepoSize = DefaultMaxRepoSize
	}
	return &RepoLoader{logger: logger, maxRepoSize: maxRepoSize}
}

// LoadZip indexes an in-memory ZIP archive. A single top-level directory
// shared by every entry (GitHub's "repo-ref/") is stripped from paths.
// Entries that would escape the root are dropped.
func (rl *RepoLoader) LoadZip(data []byte) (*Repo, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var files []*zip.File
	var names []string
	var total int64
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, ok := cleanArchivePath(f.Name)
		if !ok {
			rl.logger.Warn("repo.zip.unsafe_path", "name", f.Name)
			continue
		}
		total += int64(f.UncompressedSize64)
		if total > rl.maxRepoSize {
			return nil, fmt.Errorf("%w: more than %d bytes uncompressed", ErrRepoTooLarge, rl.maxRepoSize)
		}
		files = append(files, f)
		names = append(names, name)
	}

	strip := commonTopDir(names)
	repo := &Repo{TotalSize: total}
	for i, f := range files {
		f := f
		p := strings.TrimPrefix(names[i], strip)
		if p == "" {
			continue
		}
		repo.Entries = append(repo.Entries, Entry{
			Path: p,
			Size: int64(f.UncompressedSize64),
			open: func() (io.ReadCloser, error) { return f.Open() },
		})
	}
	sortEntries(repo.Entries)

	rl.logger.Info("repo.load.zip",
		"files", len(repo.Entries),
		"total_size", total,
		"stripped_prefix", strip,
	)
	return repo, nil
}

// LoadDir indexes a local directory. Symlinks and .git directories are not
// followed.
func (rl *RepoLoader) LoadDir(root string) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat local path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local path is not a directory: %s", abs)
	}

	repo := &Repo{}
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			rl.logger.Warn("repo.walk.error", "path", p, "err", walkErr)
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" && p != abs {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return nil
		}
		repo.TotalSize += fi.Size()
		if repo.TotalSize > rl.maxRepoSize {
			return fmt.Errorf("%w: more than %d bytes", ErrRepoTooLarge, rl.maxRepoSize)
		}
		full := p
		repo.Entries = append(repo.Entries, Entry{
			Path: filepath.ToSlash(rel),
			Size: fi.Size(),
			open: func() (io.ReadCloser, error) { return os.Open(full) },
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk repository: %w", err)
	}
	sortEntries(repo.Entries)

	rl.logger.Info("repo.load.dir", "root", abs, "files", len(repo.Entries), "total_size", repo.TotalSize)
	return repo, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

// cleanArchivePath normalises an archive member name and rejects absolute
// or parent-escaping paths.
func cleanArchivePath(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return "", false
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}

// commonTopDir returns "dir/" when every name lives under the same
// top-level directory, or "" otherwise.
func commonTopDir(names []string) string {
	if len(names) == 0 {
		return ""
	}
	top := ""
	for _, n := range names {
		i := strings.IndexByte(n, '/')
		if i < 0 {
			return ""
		}
		if top == "" {
			top = n[:i+1]
		} else if n[:i+1] != top {
			return ""
		}
	}
	return top
}
