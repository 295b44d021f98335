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

package extract

import (
	"context"
	"fmt"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/doctown/pkg/grammar"
)

// ByteRange is a half-open [Start, End) byte span within a source file.
type ByteRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns End - Start.
func (r ByteRange) Len() int { return r.End - r.Start }

// Contains reports whether o lies entirely inside r.
func (r ByteRange) Contains(o ByteRange) bool {
	return r.Start <= o.Start && o.End <= r.End
}

func nodeRange(n *sitter.Node) ByteRange {
	return ByteRange{Start: int(n.StartByte()), End: int(n.EndByte())}
}

// SymbolKind classifies a declaration.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindModule    SymbolKind = "module"
	KindStruct    SymbolKind = "struct"
	KindTrait     SymbolKind = "trait"
	KindEnum      SymbolKind = "enum"
	KindMethod    SymbolKind = "method"
	KindConst     SymbolKind = "const"
	KindInterface SymbolKind = "interface"
	KindTypeAlias SymbolKind = "type_alias"
	KindImpl      SymbolKind = "impl"
)

// Visibility is the declared export level of a symbol.
type Visibility string

const (
	Public   Visibility = "public"
	Private  Visibility = "private"
	PubCrate Visibility = "pub_crate"
	PubSuper Visibility = "pub_super"
	PubSelf  Visibility = "pub_self"
	PubIn    Visibility = "pub_in"
)

// Symbol is a named declaration. Range covers the whole declaration and
// NameRange only its identifier.
type Symbol struct {
	Kind       SymbolKind `json:"kind"`
	Name       string     `json:"name"`
	Range      ByteRange  `json:"range"`
	NameRange  ByteRange  `json:"name_range"`
	Signature  string     `json:"signature,omitempty"`
	Visibility Visibility `json:"visibility"`
	IsAsync    bool       `json:"is_async"`
}

// Import is one import clause. ImportedItems holds the names bound by
// "from X import a, b" style clauses.
type Import struct {
	ModulePath    string    `json:"module_path"`
	ImportedItems []string  `json:"imported_items,omitempty"`
	Alias         string    `json:"alias,omitempty"`
	Range         ByteRange `json:"range"`
	IsWildcard    bool      `json:"is_wildcard"`
}

// CallKind classifies the callee expression of a call site.
type CallKind string

const (
	CallFunction    CallKind = "function"
	CallMethod      CallKind = "method"
	CallAssociated  CallKind = "associated"
	CallConstructor CallKind = "constructor"
)

// Call is a call site. Name is the callee text with whitespace removed and
// may be dotted or "::"-scoped. IsResolved is only set by ResolveCalls.
type Call struct {
	Name       string    `json:"name"`
	Range      ByteRange `json:"range"`
	Kind       CallKind  `json:"kind"`
	IsResolved bool      `json:"is_resolved"`
}

// Symbols runs the symbol pass for lang over tree.
func Symbols(tree *sitter.Tree, source []byte, lang grammar.Language) []Symbol {
	root := tree.RootNode()
	switch lang {
	case grammar.Rust:
		return rustSymbols(root, source)
	case grammar.Python:
		return pythonSymbols(root, source)
	case grammar.TypeScript, grammar.JavaScript:
		return tsSymbols(root, source)
	case grammar.Go:
		return goSymbols(root, source)
	}
	return nil
}

// Imports runs the import pass for lang over tree.
func Imports(tree *sitter.Tree, source []byte, lang grammar.Language) []Import {
	root := tree.RootNode()
	switch lang {
	case grammar.Rust:
		return rustImports(root, source)
	case grammar.Python:
		return pythonImports(root, source)
	case grammar.TypeScript, grammar.JavaScript:
		return tsImports(root, source)
	case grammar.Go:
		return goImports(root, source)
	}
	return nil
}

// Calls runs the call pass for lang over tree. Every call is unresolved.
func Calls(tree *sitter.Tree, source []byte, lang grammar.Language) []Call {
	root := tree.RootNode()
	switch lang {
	case grammar.Rust:
		return rustCalls(root, source)
	case grammar.Python:
		return pythonCalls(root, source)
	case grammar.TypeScript, grammar.JavaScript:
		return tsCalls(root, source)
	case grammar.Go:
		return goCalls(root, source)
	}
	return nil
}

// Result is everything extracted from one file.
type Result struct {
	Path     string
	Language grammar.Language
	Symbols  []Symbol
	Imports  []Import
	Calls    []Call
	// SyntaxErrors counts ERROR and MISSING nodes in the parse tree.
	SyntaxErrors int
}

// Extractor parses files with a grammar pool and runs all passes.
type Extractor struct {
	pool   *grammar.Pool
	logger *slog.Logger
}

// New creates an Extractor. A nil pool uses grammar.Default().
func New(pool *grammar.Pool, logger *slog.Logger) *Extractor {
	if pool == nil {
		pool = grammar.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{pool: pool, logger: logger}
}

// File parses source and returns its symbols, imports and resolved calls.
// Syntax errors are logged and skipped, never returned.
func (e *Extractor) File(ctx context.Context, path string, source []byte, lang grammar.Language) (*Result, error) {
	tree, err := e.pool.ParseFile(ctx, path, source, lang)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	res := &Result{Path: path, Language: lang}
	if root := tree.RootNode(); root.HasError() {
		res.SyntaxErrors = grammar.CountErrors(root)
		e.logger.Warn("extract.syntax_errors",
			"path", path,
			"language", lang,
			"error_count", res.SyntaxErrors,
		)
	}

	res.Symbols = Symbols(tree, source, lang)
	res.Imports = Imports(tree, source, lang)
	res.Calls = Calls(tree, source, lang)
	ResolveCalls(res.Calls, NewSymbolTable(path, res.Symbols, res.Imports))
	return res, nil
}
