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
	sitter "github.com/smacker/go-tree-sitter"
)

// =============================================================================
// GO
// =============================================================================

func goSymbols(root *sitter.Node, src []byte) []Symbol {
	var out []Symbol
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "function_declaration":
			if s, ok := goFunc(n, KindFunction, src); ok {
				out = append(out, s)
			}
		case "method_declaration":
			if s, ok := goFunc(n, KindMethod, src); ok {
				out = append(out, s)
			}
		case "type_declaration":
			out = append(out, goTypes(n, src)...)
		case "const_declaration":
			out = append(out, goConsts(n, src)...)
		}
	}
	return out
}

func goVisibility(name string) Visibility {
	if startsUpper(name) {
		return Public
	}
	return Private
}

func goFunc(n *sitter.Node, kind SymbolKind, src []byte) (Symbol, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return Symbol{}, false
	}
	ident := text(name, src)
	return Symbol{
		Kind:       kind,
		Name:       ident,
		Range:      nodeRange(n),
		NameRange:  nodeRange(name),
		Signature:  header(n, n.StartByte(), n.ChildByFieldName("body"), src),
		Visibility: goVisibility(ident),
	}, true
}

// goTypes handles both "type X struct{}" and grouped "type ( ... )" forms.
// A lone spec takes the range of the whole declaration.
func goTypes(decl *sitter.Node, src []byte) []Symbol {
	specs := namedChildren(decl)
	var out []Symbol
	for _, spec := range specs {
		if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
			continue
		}
		name := spec.ChildByFieldName("name")
		typ := spec.ChildByFieldName("type")
		if name == nil {
			continue
		}
		kind := KindTypeAlias
		var body *sitter.Node
		if spec.Type() == "type_spec" && typ != nil {
			switch typ.Type() {
			case "struct_type":
				kind, body = KindStruct, childOfType(typ, "field_declaration_list")
			case "interface_type":
				kind = KindInterface
			}
		}
		r := nodeRange(spec)
		if len(specs) == 1 {
			r = nodeRange(decl)
		}
		sig := "type " + header(spec, spec.StartByte(), body, src)
		if kind == KindInterface {
			sig = "type " + text(name, src) + " interface"
		}
		ident := text(name, src)
		out = append(out, Symbol{
			Kind:       kind,
			Name:       ident,
			Range:      r,
			NameRange:  nodeRange(name),
			Signature:  sig,
			Visibility: goVisibility(ident),
		})
	}
	return out
}

func goConsts(decl *sitter.Node, src []byte) []Symbol {
	specs := namedChildren(decl)
	var out []Symbol
	for _, spec := range specs {
		if spec.Type() != "const_spec" {
			continue
		}
		r := nodeRange(spec)
		if len(specs) == 1 {
			r = nodeRange(decl)
		}
		var idents []*sitter.Node
		for _, c := range namedChildren(spec) {
			if c.Type() == "identifier" {
				idents = append(idents, c)
			}
		}
		for _, c := range idents {
			ident := text(c, src)
			// Names sharing one spec each get their own range.
			cr := r
			if len(idents) > 1 {
				cr = nodeRange(c)
			}
			out = append(out, Symbol{
				Kind:       KindConst,
				Name:       ident,
				Range:      cr,
				NameRange:  nodeRange(c),
				Signature:  "const " + firstLine(text(spec, src)),
				Visibility: goVisibility(ident),
			})
		}
	}
	return out
}

// ----- imports -----

func goImports(root *sitter.Node, src []byte) []Import {
	var out []Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "import_spec" {
			return true
		}
		path := n.ChildByFieldName("path")
		if path == nil {
			return false
		}
		imp := Import{ModulePath: trimQuotes(text(path, src)), Range: nodeRange(n)}
		if name := n.ChildByFieldName("name"); name != nil {
			if name.Type() == "dot" || text(name, src) == "." {
				imp.IsWildcard = true
			} else {
				imp.Alias = text(name, src)
			}
		}
		out = append(out, imp)
		return false
	})
	return out
}

// ----- calls -----

func goCalls(root *sitter.Node, src []byte) []Call {
	var out []Call
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		kind := CallFunction
		if fn.Type() == "selector_expression" {
			kind = CallMethod
		}
		out = append(out, Call{Name: compact(text(fn, src)), Range: nodeRange(n), Kind: kind})
		return true
	})
	return out
}
