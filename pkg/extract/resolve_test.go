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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolTable_Resolve(t *testing.T) {
	symbols := []Symbol{{Name: "helper"}, {Name: "Foo"}, {Name: "shadowed"}}
	imports := []Import{
		{ModulePath: "os"},
		{ModulePath: "pkg", ImportedItems: []string{"shadowed", "remote"}},
		{ModulePath: "numpy", Alias: "np"},
		{ModulePath: "github.com/acme/util"},
		{ModulePath: "std::fmt"},
	}
	table := NewSymbolTable("a.py", symbols, imports)
	assert.Equal(t, 3, table.Len())

	tests := []struct {
		name     string
		resolved bool
	}{
		{"helper", true},
		{"self.helper", true},
		{"Foo", true},
		{"Foo::helper", true},
		{"Foo::new", false},
		{"os.path.join", false},
		{"remote", false},
		{"shadowed", false},
		{"np.array", false},
		{"util.Do", false},
		{"fmt::helper", false},
		{"unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := table.Resolve(Call{Name: tt.name})
			assert.Equal(t, tt.resolved, ok)
			if ok {
				assert.Contains(t, []string{"sym_a.py::helper", "sym_a.py::Foo"}, id)
			}
		})
	}
}

func TestResolveCalls_SetsFlag(t *testing.T) {
	table := NewSymbolTable("m.rs", []Symbol{{Name: "run"}}, nil)
	calls := []Call{{Name: "run"}, {Name: "other"}, {Name: "x.run", IsResolved: false}}
	ResolveCalls(calls, table)
	assert.True(t, calls[0].IsResolved)
	assert.False(t, calls[1].IsResolved)
	assert.True(t, calls[2].IsResolved)
}

func TestEnclosing(t *testing.T) {
	symbols := []Symbol{
		{Name: "outer", Range: ByteRange{Start: 0, End: 100}},
		{Name: "inner", Range: ByteRange{Start: 10, End: 50}},
	}
	assert.Equal(t, 1, Enclosing(symbols, ByteRange{Start: 20, End: 30}))
	assert.Equal(t, 0, Enclosing(symbols, ByteRange{Start: 60, End: 70}))
	assert.Equal(t, -1, Enclosing(symbols, ByteRange{Start: 90, End: 120}))
}

func TestSymbolID(t *testing.T) {
	assert.Equal(t, "sym_src/lib.rs::parse", SymbolID("src/lib.rs", "parse"))
}
