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
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/doctown/internal/config"
	"github.com/kraklabs/doctown/internal/errors"
	"github.com/kraklabs/doctown/internal/server"
	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/llm"
	"github.com/kraklabs/doctown/pkg/packer"
)

// runServe executes the 'serve' command. The role selects which services
// are mounted: the streaming ingest service, the assembly and pack
// service, or both on one listener.
//
// Flags override the config file and environment.
func runServe(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	role := fs.String("role", "", "Services to run: ingest, assembly or all (default from config: all)")
	host := fs.String("host", "", "Listen host (default from config: 127.0.0.1)")
	port := fs.Int("port", 0, "Listen port (default from config: 8080)")
	anyOrigin := fs.Bool("allow-any-origin", false, "Answer CORS requests from any origin")
	generate := fs.Bool("generate", false, "Mount POST /generate for LLM symbol documentation (assembly roles)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doctown serve [options]

Starts the HTTP services.

  role ingest    POST/GET /ingest (server-sent events), /health, /metrics
  role assembly  POST /assemble, POST /pack, /health, /metrics
  role all       everything on one listener

With --generate the assembly roles also serve POST /generate, backed by
the provider in the llm section of the config file.

Options:
`)
		fs.PrintDefaults()
	}
	parseArgs(fs, args)

	cfg := loadConfig(globals)
	if fs.Changed("role") {
		cfg.Server.Role = *role
	}
	if fs.Changed("host") {
		cfg.Server.Host = *host
	}
	if fs.Changed("port") {
		cfg.Server.Port = *port
	}
	if fs.Changed("allow-any-origin") {
		cfg.Server.AllowAnyOrigin = *anyOrigin
	}
	if err := cfg.Validate(); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	logger := newLogger(cfg, globals)
	ctx, cancel := signalContext(logger)
	defer cancel()

	var opts []server.Option
	if cfg.Server.Role == config.RoleIngest || cfg.Server.Role == config.RoleAll {
		orch, err := ingestion.NewOrchestrator(cfg.Ingest, logger)
		if err != nil {
			errors.FatalError(errors.NewConfigError(
				"Cannot start the ingest service",
				err.Error(),
				"Check the ingest section of the config file",
				err,
			), globals.JSON)
		}
		opts = append(opts, server.WithIngest(orch))
	}
	if cfg.Server.Role == config.RoleAssembly || cfg.Server.Role == config.RoleAll {
		opts = append(opts, server.WithAssembly(
			assembly.NewService(cfg.Assembly, logger),
			packer.New(cfg.Compression(), logger),
		))
		if *generate {
			provider, err := llm.NewProvider(cfg.LLM)
			if err != nil {
				errors.FatalError(errors.NewConfigError(
					"Cannot create LLM provider",
					err.Error(),
					"Set llm.provider to openai, ollama or mock",
					err,
				), globals.JSON)
			}
			opts = append(opts, server.WithDocumenter(llm.NewDocumenter(provider, cfg.LLM, logger)))
		}
	}

	srv := server.New(cfg.Server, version, logger, opts...)
	if err := srv.ListenAndServe(ctx); err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Server stopped with an error",
			err.Error(),
			fmt.Sprintf("Check that %s is free, or pick another address with --host/--port", cfg.Server.Addr()),
			err,
		), globals.JSON)
	}
}
