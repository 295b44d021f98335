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

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/doctown/internal/config"
	"github.com/kraklabs/doctown/internal/errors"
	"github.com/kraklabs/doctown/internal/ui"
)

// initFlags holds the parsed 'init' flags.
type initFlags struct {
	force, yes               bool
	embedderURL, llmProvider string
	llmModel, llmURL         string
}

// runInit executes the 'init' command: it writes doctown.yaml (or the
// --config path) filled with the defaults and any values given as flags.
// On an interactive terminal the embedder and LLM settings are prompted
// for unless -y is set.
//
// Examples:
//
//	doctown init
//	doctown init -y --llm-provider ollama --llm-model llama3
func runInit(args []string, globals GlobalFlags) {
	var f initFlags
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	fs.BoolVar(&f.force, "force", false, "Overwrite an existing file")
	fs.BoolVarP(&f.yes, "yes", "y", false, "Use the defaults without prompting")
	fs.StringVar(&f.embedderURL, "embedder-url", "", "Embedding worker base URL")
	fs.StringVar(&f.llmProvider, "llm-provider", "", "LLM provider: openai, ollama or mock")
	fs.StringVar(&f.llmModel, "llm-model", "", "LLM model name")
	fs.StringVar(&f.llmURL, "llm-url", "", "LLM API base URL (OpenAI-compatible or Ollama)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doctown init [options]

Writes a doctown.yaml configuration file with the defaults.

Options:
`)
		fs.PrintDefaults()
	}
	parseArgs(fs, args)

	path := globals.Config
	if path == "" {
		path = config.DefaultFile
	}
	if _, err := os.Stat(path); err == nil && !f.force {
		errors.FatalError(errors.NewInputError(
			"Configuration already exists",
			path+" is already present",
			"Pass --force to overwrite it",
		), globals.JSON)
	}

	cfg := createInitConfig(f)
	if !f.yes && isatty.IsTerminal(os.Stdin.Fd()) {
		promptConfig(bufio.NewReader(os.Stdin), os.Stderr, cfg)
	}
	if err := cfg.Validate(); err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if err := writeConfig(path, cfg); err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot write configuration",
			err.Error(),
			"Check that the directory is writable",
			err,
		), globals.JSON)
	}
	ui.Successf("Created %s", path)

	if addToGitignore(filepath.Dir(path)) {
		ui.Info("Added *.docpack to .gitignore")
	}
	ui.SubHeader("Next steps")
	fmt.Fprintln(ui.Output, "  1. Review "+path)
	fmt.Fprintln(ui.Output, "  2. Run 'doctown ingest . --pack repo.docpack'")
	fmt.Fprintln(ui.Output, "  3. Run 'doctown inspect repo.docpack'")
}

func createInitConfig(f initFlags) *config.Config {
	cfg := config.Default()
	if f.embedderURL != "" {
		cfg.Embedder.URL = f.embedderURL
	}
	if f.llmProvider != "" {
		cfg.LLM.Provider = f.llmProvider
	}
	if f.llmModel != "" {
		cfg.LLM.Model = f.llmModel
	}
	if f.llmURL != "" {
		cfg.LLM.BaseURL = f.llmURL
	}
	return cfg
}

func promptConfig(r *bufio.Reader, w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "doctown configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	cfg.Embedder.URL = prompt(r, w, "Embedding worker URL", cfg.Embedder.URL)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "LLM providers: openai, ollama, mock")
	cfg.LLM.Provider = prompt(r, w, "LLM provider", cfg.LLM.Provider)
	cfg.LLM.Model = prompt(r, w, "LLM model", cfg.LLM.Model)
	cfg.LLM.BaseURL = prompt(r, w, "LLM API URL (empty for the provider default)", cfg.LLM.BaseURL)
	fmt.Fprintln(w)
}

// prompt reads one line, returning defaultValue when it is empty.
func prompt(r *bufio.Reader, w io.Writer, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprintf(w, "%s [%s]: ", label, defaultValue)
	} else {
		fmt.Fprintf(w, "%s: ", label)
	}
	input, _ := r.ReadString('\n')
	if input = strings.TrimSpace(input); input == "" {
		return defaultValue
	}
	return input
}

func writeConfig(path string, cfg *config.Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// addToGitignore appends *.docpack to dir/.gitignore when the file exists
// and does not list it yet. It reports whether the file was changed.
func addToGitignore(dir string) bool {
	path := filepath.Join(dir, ".gitignore")
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "*.docpack" {
			return false
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}
	_, err = f.WriteString("\n# doctown output\n*.docpack\n")
	return err == nil
}
