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

// Package ui provides terminal output helpers for the doctown CLI.
//
// Messages go to Output, which defaults to stderr so that command results
// written to stdout (JSON, JSONL chunk streams) stay machine-readable.
// Colors follow the --no-color flag and the NO_COLOR environment variable.
//
// Color usage:
//   - Red: errors, failed verification
//   - Yellow: warnings, skipped files
//   - Green: success, verified checksums
//   - Cyan: progress notes and counts
//   - Bold: headers and labels
//   - Dim: paths and identifiers
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Output receives every message printed by this package.
var Output io.Writer = os.Stderr

var (
	// Red is used for error messages and failures.
	Red = color.New(color.FgRed)

	// Yellow is used for warnings.
	Yellow = color.New(color.FgYellow)

	// Green is used for success messages.
	Green = color.New(color.FgGreen)

	// Cyan is used for informational messages and counts.
	Cyan = color.New(color.FgCyan)

	// Bold is used for headers and labels.
	Bold = color.New(color.Bold)

	// Dim is used for paths and ids.
	Dim = color.New(color.Faint)
)

// InitColors applies the --no-color flag. fatih/color already honours
// NO_COLOR and non-TTY output on its own.
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects messages and returns a function restoring the
// previous writer.
func SetOutput(w io.Writer) (restore func()) {
	prev := Output
	Output = w
	return func() { Output = prev }
}

// Success prints "✓ msg" in green.
func Success(msg string) {
	_, _ = Green.Fprintln(Output, "✓ "+msg)
}

func Successf(format string, args ...any) {
	_, _ = Green.Fprintf(Output, "✓ "+format+"\n", args...)
}

// Warning prints "⚠ msg" in yellow.
func Warning(msg string) {
	_, _ = Yellow.Fprintln(Output, "⚠ "+msg)
}

func Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(Output, "⚠ "+format+"\n", args...)
}

// Error prints "✗ msg" in red.
func Error(msg string) {
	_, _ = Red.Fprintln(Output, "✗ "+msg)
}

func Errorf(format string, args ...any) {
	_, _ = Red.Fprintf(Output, "✗ "+format+"\n", args...)
}

// Info prints "ℹ msg" in cyan.
func Info(msg string) {
	_, _ = Cyan.Fprintln(Output, "ℹ "+msg)
}

func Infof(format string, args ...any) {
	_, _ = Cyan.Fprintf(Output, "ℹ "+format+"\n", args...)
}

// Header prints a bold title underlined with "=".
//
//	Docpack sha256:3f2a...
//	======================
func Header(text string) {
	_, _ = Bold.Fprintln(Output, text)
	_, _ = fmt.Fprintln(Output, strings.Repeat("=", len([]rune(text))))
}

// SubHeader prints a bold title without an underline.
func SubHeader(text string) {
	_, _ = Bold.Fprintln(Output, text)
}

// Row prints an indented "label value" line.
func Row(label string, value any) {
	_, _ = fmt.Fprintf(Output, "  %s %v\n", Label(label), value)
}

// Label returns text in bold for inline use.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns text dimmed.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a count in cyan.
func CountText(count int) string {
	return Cyan.Sprint(count)
}

// ByteText formats a size using binary units: "512 B", "1.5 KiB".
func ByteText(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
