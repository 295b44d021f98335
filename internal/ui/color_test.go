// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

// plain disables colors and captures Output for the duration of a test.
func plain(t *testing.T) *bytes.Buffer {
	t.Helper()
	original := color.NoColor
	color.NoColor = true
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	t.Cleanup(func() {
		color.NoColor = original
		restore()
	})
	return &buf
}

func TestInitColors(t *testing.T) {
	original := color.NoColor
	defer func() { color.NoColor = original }()

	color.NoColor = false
	InitColors(false)
	if color.NoColor {
		t.Error("InitColors(false) must not disable colors")
	}

	InitColors(true)
	if !color.NoColor {
		t.Error("InitColors(true) must disable colors")
	}

	// The flag cannot turn colors back on once NO_COLOR or a pipe disabled them.
	InitColors(false)
	if !color.NoColor {
		t.Error("InitColors(false) must keep colors disabled")
	}
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	if Output != &buf {
		t.Fatal("SetOutput did not replace Output")
	}
	restore()
	if Output == &buf {
		t.Error("restore did not put back the previous writer")
	}
}

func TestMessageFunctions(t *testing.T) {
	tests := []struct {
		name string
		call func()
		want string
	}{
		{"Success", func() { Success("docpack written") }, "✓ docpack written\n"},
		{"Successf", func() { Successf("%d files", 3) }, "✓ 3 files\n"},
		{"Warning", func() { Warning("2 files skipped") }, "⚠ 2 files skipped\n"},
		{"Warningf", func() { Warningf("%s skipped", "go.sum") }, "⚠ go.sum skipped\n"},
		{"Error", func() { Error("checksum mismatch") }, "✗ checksum mismatch\n"},
		{"Errorf", func() { Errorf("exit %d", 2) }, "✗ exit 2\n"},
		{"Info", func() { Info("fetching") }, "ℹ fetching\n"},
		{"Infof", func() { Infof("job %s", "job_abcd") }, "ℹ job job_abcd\n"},
		{"SubHeader", func() { SubHeader("Statistics") }, "Statistics\n"},
		{"Row", func() { Row("Files:", 12) }, "  Files: 12\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := plain(t)
			tt.call()
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeader(t *testing.T) {
	buf := plain(t)
	Header("Docpack ✓")
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if lines[1] != strings.Repeat("=", 9) {
		t.Errorf("underline should match rune length, got %q", lines[1])
	}
}

func TestInlineFormatting(t *testing.T) {
	plain(t)

	if got := Label("Docpack ID:"); got != "Docpack ID:" {
		t.Errorf("Label() = %q", got)
	}
	if got := DimText("src/main.rs"); got != "src/main.rs" {
		t.Errorf("DimText() = %q", got)
	}
	if got := CountText(42); got != "42" {
		t.Errorf("CountText() = %q", got)
	}
	if got := CountText(-1); got != "-1" {
		t.Errorf("CountText(-1) = %q", got)
	}
	if got := Label(""); got != "" {
		t.Errorf("Label(\"\") = %q", got)
	}
}

func TestByteText(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{10 << 20, "10.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := ByteText(tt.in); got != tt.want {
			t.Errorf("ByteText(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
