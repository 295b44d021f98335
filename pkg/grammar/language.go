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

package grammar

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Language is one of the closed set of languages the pipeline understands.
// The string value is the wire name used in events and docpacks.
type Language string

const (
	Rust       Language = "rust"
	Python     Language = "python"
	TypeScript Language = "typescript"
	JavaScript Language = "javascript"
	Go         Language = "go"
)

// All lists every supported language in a stable order.
var All = []Language{Rust, Python, TypeScript, JavaScript, Go}

var extensions = map[string]Language{
	".rs":  Rust,
	".py":  Python,
	".pyi": Python,
	".ts":  TypeScript,
	".tsx": TypeScript,
	".mts": TypeScript,
	".cts": TypeScript,
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".go":  Go,
}

var interpreters = map[string]Language{
	"python":  Python,
	"python2": Python,
	"python3": Python,
	"node":    JavaScript,
	"nodejs":  JavaScript,
	"deno":    TypeScript,
	"ts-node": TypeScript,
}

// Valid reports whether l is a member of the supported set.
func (l Language) Valid() bool {
	switch l {
	case Rust, Python, TypeScript, JavaScript, Go:
		return true
	}
	return false
}

// Extension returns the canonical file extension, including the dot.
func (l Language) Extension() string {
	switch l {
	case Rust:
		return ".rs"
	case Python:
		return ".py"
	case TypeScript:
		return ".ts"
	case JavaScript:
		return ".js"
	case Go:
		return ".go"
	}
	return ""
}

func (l Language) String() string { return string(l) }

// ParseLanguage maps a wire name back to a Language.
func ParseLanguage(s string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Valid()
}

// FromPath detects the language from the file extension.
func FromPath(path string) (Language, bool) {
	l, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// FromShebang detects the language from a "#!" first line. Both direct
// interpreter paths and "/usr/bin/env <interp>" forms are recognised.
func FromShebang(content []byte) (Language, bool) {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return "", false
	}
	line := content[2:]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(string(line))
	if len(fields) == 0 {
		return "", false
	}
	interp := filepath.Base(fields[0])
	if interp == "env" {
		interp = ""
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") || strings.Contains(f, "=") {
				continue
			}
			interp = filepath.Base(f)
			break
		}
	}
	l, ok := interpreters[interp]
	return l, ok
}

// Detect tries the extension first and falls back to the shebang line.
func Detect(path string, content []byte) (Language, bool) {
	if l, ok := FromPath(path); ok {
		return l, true
	}
	return FromShebang(content)
}
