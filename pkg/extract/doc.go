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

// Package extract turns a tree-sitter syntax tree into symbols, imports
// and call sites.
//
// Each pass walks the tree once and dispatches on the file's language.
// ERROR regions produced by the parser are skipped rather than reported,
// so a file with syntax errors still yields whatever parsed cleanly.
//
// Call resolution is deliberately local: a call is resolved only when it
// names a symbol declared in the same file and does not go through an
// import.
package extract
