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
// RUST
// =============================================================================

type rustWalker struct {
	src []byte
	out []Symbol
}

func rustSymbols(root *sitter.Node, src []byte) []Symbol {
	w := &rustWalker{src: src}
	w.visit(root, false)
	return w.out
}

// visit walks declarations in document order. inImpl is true for direct
// members of impl and trait bodies, which makes their fns methods.
func (w *rustWalker) visit(n *sitter.Node, inImpl bool) {
	if n == nil || n.IsError() {
		return
	}
	switch n.Type() {
	case "function_item", "function_signature_item":
		w.function(n, inImpl)
		w.children(n.ChildByFieldName("body"), false)
		return
	case "impl_item":
		w.impl(n)
		w.children(n.ChildByFieldName("body"), true)
		return
	case "trait_item":
		w.named(n, KindTrait, n.ChildByFieldName("body"))
		w.children(n.ChildByFieldName("body"), true)
		return
	case "struct_item":
		w.named(n, KindStruct, rustTypeBody(n))
		return
	case "enum_item":
		w.named(n, KindEnum, n.ChildByFieldName("body"))
		return
	case "mod_item":
		w.module(n)
		w.children(n.ChildByFieldName("body"), false)
		return
	case "const_item", "static_item":
		w.whole(n, KindConst)
		return
	case "type_item":
		w.whole(n, KindTypeAlias)
		return
	}
	w.children(n, inImpl)
}

func (w *rustWalker) children(n *sitter.Node, inImpl bool) {
	for _, c := range namedChildren(n) {
		w.visit(c, inImpl)
	}
}

func (w *rustWalker) function(n *sitter.Node, inImpl bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	kind := KindFunction
	if inImpl {
		kind = KindMethod
	}
	isAsync := false
	if mods := childOfType(n, "function_modifiers"); mods != nil {
		isAsync = strings.Contains(text(mods, w.src), "async")
	}
	w.out = append(w.out, Symbol{
		Kind:       kind,
		Name:       text(name, w.src),
		Range:      nodeRange(n),
		NameRange:  nodeRange(name),
		Signature:  strings.TrimSuffix(header(n, name.StartByte(), n.ChildByFieldName("body"), w.src), ";"),
		Visibility: rustVisibility(n, w.src),
		IsAsync:    isAsync,
	})
}

// named records a struct/enum/trait whose signature runs from the name up
// to the body.
func (w *rustWalker) named(n *sitter.Node, kind SymbolKind, body *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	w.out = append(w.out, Symbol{
		Kind:       kind,
		Name:       text(name, w.src),
		Range:      nodeRange(n),
		NameRange:  nodeRange(name),
		Signature:  strings.TrimSuffix(header(n, name.StartByte(), body, w.src), ";"),
		Visibility: rustVisibility(n, w.src),
	})
}

// rustTypeBody returns the braced field list of a struct. Tuple structs
// keep their fields in the signature.
func rustTypeBody(n *sitter.Node) *sitter.Node {
	body := n.ChildByFieldName("body")
	if body != nil && body.Type() == "field_declaration_list" {
		return body
	}
	return nil
}

func (w *rustWalker) impl(n *sitter.Node) {
	typ := n.ChildByFieldName("type")
	if typ == nil {
		return
	}
	name := text(typ, w.src)
	if trait := n.ChildByFieldName("trait"); trait != nil {
		name = text(trait, w.src) + " for " + name
	}
	w.out = append(w.out, Symbol{
		Kind:       KindImpl,
		Name:       name,
		Range:      nodeRange(n),
		NameRange:  nodeRange(typ),
		Signature:  header(n, n.StartByte(), n.ChildByFieldName("body"), w.src),
		Visibility: Private,
	})
}

func (w *rustWalker) module(n *sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	w.out = append(w.out, Symbol{
		Kind:       KindModule,
		Name:       text(name, w.src),
		Range:      nodeRange(n),
		NameRange:  nodeRange(name),
		Signature:  "mod " + text(name, w.src),
		Visibility: rustVisibility(n, w.src),
	})
}

func (w *rustWalker) whole(n *sitter.Node, kind SymbolKind) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	w.out = append(w.out, Symbol{
		Kind:       kind,
		Name:       text(name, w.src),
		Range:      nodeRange(n),
		NameRange:  nodeRange(name),
		Signature:  strings.TrimSpace(text(n, w.src)),
		Visibility: rustVisibility(n, w.src),
	})
}

func rustVisibility(n *sitter.Node, src []byte) Visibility {
	mod := childOfType(n, "visibility_modifier")
	if mod == nil {
		return Private
	}
	v := compact(text(mod, src))
	switch {
	case v == "pub":
		return Public
	case v == "pub(crate)", v == "crate":
		return PubCrate
	case v == "pub(super)":
		return PubSuper
	case v == "pub(self)":
		return PubSelf
	case strings.HasPrefix(v, "pub(in"):
		return PubIn
	}
	return Public
}

// ----- imports -----

func rustImports(root *sitter.Node, src []byte) []Import {
	var out []Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "use_declaration" {
			return true
		}
		if arg := n.ChildByFieldName("argument"); arg != nil {
			out = append(out, rustUse(arg, nodeRange(n), src))
		}
		return false
	})
	return out
}

func rustUse(arg *sitter.Node, r ByteRange, src []byte) Import {
	imp := Import{Range: r}
	switch arg.Type() {
	case "scoped_use_list":
		imp.ModulePath = text(arg.ChildByFieldName("path"), src)
		imp.ImportedItems, imp.IsWildcard = rustUseList(arg.ChildByFieldName("list"), src)
	case "use_list":
		imp.ImportedItems, imp.IsWildcard = rustUseList(arg, src)
	case "use_wildcard":
		imp.ModulePath = strings.TrimSuffix(compact(text(arg, src)), "::*")
		imp.IsWildcard = true
	case "use_as_clause":
		imp.ModulePath = compact(text(arg.ChildByFieldName("path"), src))
		imp.Alias = text(arg.ChildByFieldName("alias"), src)
	default:
		imp.ModulePath = compact(text(arg, src))
	}
	return imp
}

func rustUseList(list *sitter.Node, src []byte) (items []string, wildcard bool) {
	for _, c := range namedChildren(list) {
		switch c.Type() {
		case "use_wildcard":
			wildcard = true
		case "use_as_clause":
			items = append(items, compact(text(c.ChildByFieldName("path"), src)))
		default:
			item, _, _ := strings.Cut(text(c, src), " as ")
			items = append(items, compact(item))
		}
	}
	return items, wildcard
}

// ----- calls -----

func rustCalls(root *sitter.Node, src []byte) []Call {
	var out []Call
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Type() == "generic_function" {
			if inner := fn.ChildByFieldName("function"); inner != nil {
				fn = inner
			}
		}
		if fn == nil {
			return true
		}
		name := compact(text(fn, src))
		kind := CallFunction
		switch {
		case fn.Type() == "field_expression":
			kind = CallMethod
		case strings.Contains(name, "::"):
			kind = CallAssociated
		}
		out = append(out, Call{Name: name, Range: nodeRange(n), Kind: kind})
		return true
	})
	return out
}
