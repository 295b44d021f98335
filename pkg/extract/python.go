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
// PYTHON
// =============================================================================

type pythonWalker struct {
	src []byte
	out []Symbol
}

func pythonSymbols(root *sitter.Node, src []byte) []Symbol {
	w := &pythonWalker{src: src}
	for _, c := range namedChildren(root) {
		if c.Type() == "expression_statement" {
			w.assignment(c)
			continue
		}
		w.visit(c, false)
	}
	return w.out
}

// visit records defs and classes. inClass is true for direct members of a
// class body.
func (w *pythonWalker) visit(n *sitter.Node, inClass bool) {
	if n == nil || n.IsError() {
		return
	}
	switch n.Type() {
	case "function_definition":
		w.function(n, inClass)
		w.children(n.ChildByFieldName("body"), false)
		return
	case "class_definition":
		w.class(n)
		w.children(n.ChildByFieldName("body"), true)
		return
	}
	w.children(n, inClass)
}

func (w *pythonWalker) children(n *sitter.Node, inClass bool) {
	for _, c := range namedChildren(n) {
		w.visit(c, inClass)
	}
}

func (w *pythonWalker) function(n *sitter.Node, inClass bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	kind := KindFunction
	if inClass {
		kind = KindMethod
	}

	var sig strings.Builder
	sig.WriteString(text(name, w.src))
	sig.WriteString(text(n.ChildByFieldName("parameters"), w.src))
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		sig.WriteString(" -> ")
		sig.WriteString(text(ret, w.src))
	}

	w.out = append(w.out, Symbol{
		Kind:       kind,
		Name:       text(name, w.src),
		Range:      nodeRange(n),
		NameRange:  nodeRange(name),
		Signature:  sig.String(),
		Visibility: Public,
		IsAsync:    childOfType(n, "async") != nil,
	})
}

func (w *pythonWalker) class(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	w.out = append(w.out, Symbol{
		Kind:       KindClass,
		Name:       text(name, w.src),
		Range:      nodeRange(n),
		NameRange:  nodeRange(name),
		Signature:  text(name, w.src) + text(n.ChildByFieldName("superclasses"), w.src),
		Visibility: Public,
	})
}

// assignment records a module-level "NAME = value" as a constant. Dunder
// names other than __all__ are skipped.
func (w *pythonWalker) assignment(stmt *sitter.Node) {
	for _, n := range namedChildren(stmt) {
		if n.Type() != "assignment" {
			continue
		}
		left := n.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			continue
		}
		name := text(left, w.src)
		if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && name != "__all__" {
			continue
		}
		sig := name
		if typ := n.ChildByFieldName("type"); typ != nil {
			sig += ": " + text(typ, w.src)
		}
		w.out = append(w.out, Symbol{
			Kind:       KindConst,
			Name:       name,
			Range:      nodeRange(n),
			NameRange:  nodeRange(left),
			Signature:  sig,
			Visibility: Public,
		})
	}
}

// ----- imports -----

func pythonImports(root *sitter.Node, src []byte) []Import {
	var out []Import
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for _, c := range namedChildren(n) {
				switch c.Type() {
				case "dotted_name":
					out = append(out, Import{ModulePath: text(c, src), Range: nodeRange(n)})
				case "aliased_import":
					out = append(out, Import{
						ModulePath: text(c.ChildByFieldName("name"), src),
						Alias:      text(c.ChildByFieldName("alias"), src),
						Range:      nodeRange(n),
					})
				}
			}
			return false
		case "import_from_statement":
			out = append(out, pythonFromImport(n, src))
			return false
		}
		return true
	})
	return out
}

func pythonFromImport(n *sitter.Node, src []byte) Import {
	imp := Import{ModulePath: ".", Range: nodeRange(n)}
	module := n.ChildByFieldName("module_name")
	if module != nil {
		imp.ModulePath = text(module, src)
	}
	for _, c := range namedChildren(n) {
		if module != nil && c.StartByte() == module.StartByte() && c.EndByte() == module.EndByte() {
			continue
		}
		switch c.Type() {
		case "wildcard_import":
			imp.IsWildcard = true
		case "dotted_name", "identifier":
			imp.ImportedItems = append(imp.ImportedItems, text(c, src))
		case "aliased_import":
			imp.ImportedItems = append(imp.ImportedItems, text(c.ChildByFieldName("name"), src))
		}
	}
	return imp
}

// ----- calls -----

func pythonCalls(root *sitter.Node, src []byte) []Call {
	var out []Call
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		name := compact(text(fn, src))
		kind := CallFunction
		switch {
		case fn.Type() == "attribute":
			kind = CallMethod
		case startsUpper(name):
			kind = CallConstructor
		}
		out = append(out, Call{Name: name, Range: nodeRange(n), Kind: kind})
		return true
	})
	return out
}
