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

// Package grammar owns the tree-sitter grammars used by the extractors.
//
// Languages form a closed set (Rust, Python, TypeScript, JavaScript, Go).
// Detection works on the file extension first and falls back to the
// shebang line. A Pool lazily initialises one grammar per language and
// hands out parsers so that concurrent workers never share one.
//
//	tree, err := grammar.Default().Parse(ctx, src, grammar.Rust)
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
package grammar
