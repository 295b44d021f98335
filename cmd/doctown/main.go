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

// Package main implements the doctown CLI: run the ingest and assembly
// services, ingest a repository locally and inspect docpacks.
//
// Usage:
//
//	doctown serve [--role ingest|assembly|all]   Start the HTTP services
//	doctown ingest <zip|dir|github-url>         Ingest a repository locally
//	doctown inspect <file.docpack> [--json]     Verify and describe a docpack
//	doctown init [-y]                           Write doctown.yaml with the defaults
//	doctown completion <bash|zsh|fish>          Print a shell completion script
//	doctown version                             Print version information
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/doctown/internal/config"
	"github.com/kraklabs/doctown/internal/errors"
	"github.com/kraklabs/doctown/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags are the flags accepted before the command name.
type GlobalFlags struct {
	Config  string
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
	LogJSON bool
}

func main() {
	var globals GlobalFlags
	fs := flag.NewFlagSet("doctown", flag.ExitOnError)
	fs.SetInterspersed(false)
	fs.StringVar(&globals.Config, "config", "", "Path to doctown.yaml (default: $DOCTOWN_CONFIG or ./doctown.yaml)")
	fs.BoolVar(&globals.JSON, "json", false, "Print results and errors as JSON")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	fs.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	fs.CountVarP(&globals.Verbose, "verbose", "v", "Increase log verbosity")
	fs.BoolVar(&globals.LogJSON, "log-json", false, "Write logs as JSON")
	showVersion := fs.Bool("version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `doctown - documentation packs from source repositories

doctown ingests a repository, splits its source into symbol-aware chunks,
clusters the chunk embeddings, builds a symbol graph and writes the result
as a self-describing .docpack archive.

Usage:
  doctown [global options] <command> [options]

Commands:
  serve      Start the ingest and assembly HTTP services
  ingest     Ingest a repository (zip, directory or GitHub URL)
  inspect    Verify a docpack and print its manifest
  init       Write doctown.yaml with the defaults
  completion Generate a shell completion script
  version    Print version information

Global Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  doctown serve --role all --port 8080
  doctown ingest https://github.com/owner/repo --out chunks.jsonl
  doctown ingest ./repo.zip --pack repo.docpack
  doctown inspect repo.docpack --json

Environment Variables:
  DOCTOWN_CONFIG        Config file path
  DOCTOWN_HOST          Listen host
  DOCTOWN_PORT          Listen port
  DOCTOWN_CORS_ORIGINS  Comma-separated allowed origins
  DOCTOWN_LOG_LEVEL     debug, info, warn or error
  EMBEDDING_URL         Embedding worker base URL
  DOCTOWN_LLM_PROVIDER  openai, ollama or mock
  DOCTOWN_LLM_MODEL     LLM model name
  OPENAI_API_KEY        API key for the openai provider

For detailed command help: doctown <command> --help

`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(errors.ExitInput)
	}
	ui.InitColors(globals.NoColor)

	if *showVersion {
		runVersion(nil, globals)
		return
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(errors.ExitInput)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "serve":
		runServe(cmdArgs, globals)
	case "ingest":
		runIngest(cmdArgs, globals)
	case "inspect":
		runInspect(cmdArgs, globals)
	case "init":
		runInit(cmdArgs, globals)
	case "completion":
		runCompletion(cmdArgs, globals)
	case "version":
		runVersion(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fs.Usage()
		os.Exit(errors.ExitInput)
	}
}

// loadConfig loads the layered configuration or exits.
func loadConfig(globals GlobalFlags) *config.Config {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	return cfg
}

// newLogger builds the process logger on stderr. Each -v lowers the level
// by one step below the configured one.
func newLogger(cfg *config.Config, globals GlobalFlags) *slog.Logger {
	level, err := cfg.LogLevel()
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	level -= slog.Level(4 * globals.Verbose)

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if globals.LogJSON || cfg.Log.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("shutdown.signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// parseArgs parses a subcommand's flags, exiting with an input error code
// on failure.
func parseArgs(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}
}
