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
	"sort"
	"strings"
)

// SymbolID returns the synthetic id used for a symbol during resolution.
func SymbolID(file, name string) string {
	return "sym_" + file + "::" + name
}

// SymbolTable maps the bare names declared in one file to their ids and
// carries that file's imports.
type SymbolTable struct {
	symbols map[string]string
	imports []Import
}

// NewSymbolTable builds the table for one file. When a name is declared
// more than once the last declaration wins.
func NewSymbolTable(file string, symbols []Symbol, imports []Import) *SymbolTable {
	t := &SymbolTable{
		symbols: make(map[string]string, len(symbols)),
		imports: imports,
	}
	for _, s := range symbols {
		t.symbols[s.Name] = SymbolID(file, s.Name)
	}
	return t
}

// Len returns the number of distinct names.
func (t *SymbolTable) Len() int { return len(t.symbols) }

// Lookup returns the id for a bare name.
func (t *SymbolTable) Lookup(name string) (string, bool) {
	id, ok := t.symbols[name]
	return id, ok
}

// Resolve returns the local symbol a call refers to. Calls that go through
// an import (module path, imported item or alias) are external and never
// resolve, even when a local symbol shares the name.
func (t *SymbolTable) Resolve(c Call) (string, bool) {
	if t.external(c.Name) {
		return "", false
	}
	if id, ok := t.symbols[c.Name]; ok {
		return id, true
	}
	if tail := lastSegment(c.Name); tail != c.Name {
		if id, ok := t.symbols[tail]; ok {
			return id, true
		}
	}
	return "", false
}

func (t *SymbolTable) external(name string) bool {
	head := firstSegment(name)
	qualified := head != name
	for _, imp := range t.imports {
		if imp.ModulePath != "" {
			if imp.ModulePath == name {
				return true
			}
			if qualified && (imp.ModulePath == head || lastSegment(imp.ModulePath) == head || pathBase(imp.ModulePath) == head) {
				return true
			}
		}
		for _, item := range imp.ImportedItems {
			if item == name || item == head {
				return true
			}
		}
		if imp.Alias != "" && (imp.Alias == name || imp.Alias == head) {
			return true
		}
	}
	return false
}

// ResolveCalls sets IsResolved on every call that refers to a symbol in t.
func ResolveCalls(calls []Call, t *SymbolTable) {
	for i := range calls {
		_, ok := t.Resolve(calls[i])
		calls[i].IsResolved = ok
	}
}

// splitPath splits on both "::" and "." separators.
func splitPath(name string) []string {
	return strings.FieldsFunc(strings.ReplaceAll(name, "::", "."), func(r rune) bool { return r == '.' })
}

// pathBase returns the last "/" element, the package name of a Go import or
// the file of a relative JS import.
func pathBase(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

func firstSegment(name string) string {
	parts := splitPath(name)
	if len(parts) == 0 {
		return name
	}
	return parts[0]
}

func lastSegment(name string) string {
	parts := splitPath(name)
	if len(parts) == 0 {
		return name
	}
	return parts[len(parts)-1]
}

// Enclosing returns the index of the innermost symbol whose range contains
// r, or -1.
func Enclosing(symbols []Symbol, r ByteRange) int {
	best := -1
	for i, s := range symbols {
		if !s.Range.Contains(r) {
			continue
		}
		if best < 0 || s.Range.Len() < symbols[best].Range.Len() {
			best = i
		}
	}
	return best
}

// CallTargets groups the resolved calls of a file by the symbol they occur
// in, mapping each caller index to the sorted, de-duplicated ids of the
// local symbols it calls. Self-calls are dropped.
func (r *Result) CallTargets() map[int][]string {
	table := NewSymbolTable(r.Path, r.Symbols, r.Imports)
	seen := make(map[int]map[string]struct{})
	for _, c := range r.Calls {
		if !c.IsResolved {
			continue
		}
		caller := Enclosing(r.Symbols, c.Range)
		if caller < 0 {
			continue
		}
		target, ok := table.Resolve(c)
		if !ok || target == SymbolID(r.Path, r.Symbols[caller].Name) {
			continue
		}
		if seen[caller] == nil {
			seen[caller] = make(map[string]struct{})
		}
		seen[caller][target] = struct{}{}
	}

	out := make(map[int][]string, len(seen))
	for caller, targets := range seen {
		ids := make([]string, 0, len(targets))
		for id := range targets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out[caller] = ids
	}
	return out
}
