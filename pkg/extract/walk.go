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
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// walk visits n and its named descendants in document order. Returning
// false from fn skips the node's children. ERROR subtrees are skipped.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || n.IsError() {
		return
	}
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), fn)
	}
}

// namedChildren returns n's named children, skipping ERROR nodes.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.IsError() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// childOfType returns the first direct child (named or not) of type typ.
func childOfType(n *sitter.Node, typ string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == typ {
			return c
		}
	}
	return nil
}

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

// header returns the trimmed source from start up to the body node, or up
// to the end of n when there is no body.
func header(n *sitter.Node, start uint32, body *sitter.Node, src []byte) string {
	end := n.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	if end < start {
		return ""
	}
	return strings.TrimSpace(string(src[start:end]))
}

var separatorSpace = strings.NewReplacer(
	" .", ".", ". ", ".",
	" ?.", "?.",
	" ::", "::", ":: ", "::",
)

// compact collapses whitespace runs and drops spaces around member
// separators, so multi-line chains read as one callee name.
func compact(s string) string {
	return separatorSpace.Replace(strings.Join(strings.Fields(s), " "))
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// firstLine cuts s at the first newline.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func trimQuotes(s string) string {
	return strings.Trim(s, "\"'`")
}
