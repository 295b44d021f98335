// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package grammar

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnsupportedLanguage is returned when no grammar exists for a language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// dialect keys a grammar. TypeScript has two: plain and TSX.
type dialect struct {
	lang Language
	tsx  bool
}

type entry struct {
	grammar *sitter.Language
	parsers sync.Pool
}

// Pool caches one grammar per dialect and recycles parsers bound to it.
//
// A *sitter.Parser is not safe for concurrent use, so each Parse call checks
// a parser out of the dialect's sync.Pool and returns it afterwards. Workers
// running in parallel therefore never share parser state, while sequential
// calls on the same goroutine reuse the same parser.
type Pool struct {
	mu      sync.Mutex
	entries map[dialect]*entry
}

// NewPool returns an empty pool. Grammars are initialised lazily.
func NewPool() *Pool {
	return &Pool{entries: make(map[dialect]*entry)}
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide pool.
func Default() *Pool {
	defaultPoolOnce.Do(func() { defaultPool = NewPool() })
	return defaultPool
}

func loadGrammar(d dialect) *sitter.Language {
	switch d.lang {
	case Rust:
		return rust.GetLanguage()
	case Python:
		return python.GetLanguage()
	case TypeScript:
		if d.tsx {
			return tsx.GetLanguage()
		}
		return typescript.GetLanguage()
	case JavaScript:
		return javascript.GetLanguage()
	case Go:
		return golang.GetLanguage()
	}
	return nil
}

func (p *Pool) entry(d dialect) (*entry, error) {
	if !d.lang.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, string(d.lang))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[d]; ok {
		return e, nil
	}
	g := loadGrammar(d)
	if g == nil {
		// A supported language without a grammar is a build defect.
		panic(fmt.Sprintf("grammar: no tree-sitter grammar linked for %s", d.lang))
	}
	e := &entry{grammar: g}
	e.parsers.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(g)
		return parser
	}
	p.entries[d] = e
	return e, nil
}

// Len reports how many grammars have been initialised.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Parse parses source with the grammar for lang. Syntactically invalid input
// still yields a tree; its root reports HasError and callers are expected to
// skip the error regions rather than fail.
func (p *Pool) Parse(ctx context.Context, source []byte, lang Language) (*sitter.Tree, error) {
	return p.parse(ctx, dialect{lang: lang}, source, nil)
}

// ParseIncremental is Parse with a previous tree whose edits have already
// been applied via Tree.Edit. Unchanged subtrees are reused.
func (p *Pool) ParseIncremental(ctx context.Context, source []byte, lang Language, previous *sitter.Tree) (*sitter.Tree, error) {
	return p.parse(ctx, dialect{lang: lang}, source, previous)
}

// ParseFile is Parse with the dialect chosen from the path, so that .tsx
// files get the TSX grammar.
func (p *Pool) ParseFile(ctx context.Context, path string, source []byte, lang Language) (*sitter.Tree, error) {
	d := dialect{lang: lang}
	if lang == TypeScript && strings.EqualFold(filepath.Ext(path), ".tsx") {
		d.tsx = true
	}
	return p.parse(ctx, d, source, nil)
}

func (p *Pool) parse(ctx context.Context, d dialect, source []byte, previous *sitter.Tree) (*sitter.Tree, error) {
	e, err := p.entry(d)
	if err != nil {
		return nil, err
	}
	parser := e.parsers.Get().(*sitter.Parser)
	defer e.parsers.Put(parser)

	tree, err := parser.ParseCtx(ctx, previous, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse %s: %w", d.lang, err)
	}
	return tree, nil
}

// CountErrors returns the number of ERROR and MISSING nodes under n.
func CountErrors(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	if n.IsError() || n.IsMissing() {
		return 1
	}
	if !n.HasError() {
		return 0
	}
	count := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		count += CountErrors(n.Child(i))
	}
	return count
}

// Text returns the source slice covered by n.
func Text(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return string(source[n.StartByte():n.EndByte()])
}
