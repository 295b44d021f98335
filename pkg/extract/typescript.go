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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// TYPESCRIPT / JAVASCRIPT
// =============================================================================

// Both grammars share node names for everything extracted here; the
// TypeScript-only nodes simply never occur in JavaScript trees.

type tsWalker struct {
	src []byte
	out []Symbol
}

func tsSymbols(root *sitter.Node, src []byte) []Symbol {
	w := &tsWalker{src: src}
	w.visit(root)
	return w.out
}

func (w *tsWalker) visit(n *sitter.Node) {
	if n == nil || n.IsError() {
		return
	}
	switch n.Type() {
	case "function_declaration", "generator_function_declaration":
		w.add(n, KindFunction, n.ChildByFieldName("body"), tsExportVisibility(n))
	case "class_declaration", "abstract_class_declaration":
		w.add(n, KindClass, n.ChildByFieldName("body"), tsExportVisibility(n))
	case "method_definition":
		w.add(n, KindMethod, n.ChildByFieldName("body"), tsMemberVisibility(n, w.src))
	case "interface_declaration":
		w.add(n, KindInterface, n.ChildByFieldName("body"), tsExportVisibility(n))
	case "type_alias_declaration":
		w.add(n, KindTypeAlias, nil, tsExportVisibility(n))
		return
	}
	for _, c := range namedChildren(n) {
		w.visit(c)
	}
}

func (w *tsWalker) add(n *sitter.Node, kind SymbolKind, body *sitter.Node, vis Visibility) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	w.out = append(w.out, Symbol{
		Kind:       kind,
		Name:       text(name, w.src),
		Range:      nodeRange(n),
		NameRange:  nodeRange(name),
		Signature:  strings.TrimSuffix(header(n, n.StartByte(), body, w.src), ";"),
		Visibility: vis,
		IsAsync:    childOfType(n, "async") != nil,
	})
}

func tsExportVisibility(n *sitter.Node) Visibility {
	if p := n.Parent(); p != nil && p.Type() == "export_statement" {
		return Public
	}
	return Private
}

func tsMemberVisibility(n *sitter.Node, src []byte) Visibility {
	if mod := childOfType(n, "accessibility_modifier"); mod != nil {
		switch text(mod, src) {
		case "private", "protected":
			return Private
		}
	}
	if name := n.ChildByFieldName("name"); name != nil && name.Type() == "private_property_identifier" {
		return Private
	}
	return Public
}

// ----- imports -----

func tsImports(root *sitter.Node, src []byte) []Import {
	var out []Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "import_statement" {
			return true
		}
		source := n.ChildByFieldName("source")
		if source == nil {
			return false
		}
		imp := Import{ModulePath: trimQuotes(text(source, src)), Range: nodeRange(n)}
		if clause := childOfType(n, "import_clause"); clause != nil {
			tsImportClause(clause, src, &imp)
		}
		out = append(out, imp)
		return false
	})
	return out
}

func tsImportClause(clause *sitter.Node, src []byte, imp *Import) {
	for _, c := range namedChildren(clause) {
		switch c.Type() {
		case "namespace_import":
			imp.IsWildcard = true
			if id := childOfType(c, "identifier"); id != nil {
				imp.Alias = text(id, src)
			}
		case "named_imports":
			for _, spec := range namedChildren(c) {
				if spec.Type() != "import_specifier" {
					continue
				}
				if name := spec.ChildByFieldName("name"); name != nil {
					imp.ImportedItems = append(imp.ImportedItems, text(name, src))
				}
			}
		case "identifier":
			if imp.Alias == "" {
				imp.Alias = text(c, src)
			}
		}
	}
}

// ----- calls -----

func tsCalls(root *sitter.Node, src []byte) []Call {
	var out []Call
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				return true
			}
			kind := CallFunction
			if fn.Type() == "member_expression" {
				kind = CallMethod
			}
			out = append(out, Call{Name: compact(text(fn, src)), Range: nodeRange(n), Kind: kind})
		case "new_expression":
			if ctor := n.ChildByFieldName("constructor"); ctor != nil {
				out = append(out, Call{Name: compact(text(ctor, src)), Range: nodeRange(n), Kind: CallConstructor})
			}
		}
		return true
	})
	return out
}
