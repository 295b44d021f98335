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

	"github.com/kraklabs/doctown/internal/errors"
)

const bashCompletion = `#!/bin/bash

# Bash completion for doctown
#   source <(doctown completion bash)

_doctown_completion() {
    local cur prev commands
    commands="serve ingest inspect init version completion"
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    if [ $COMP_CWORD -eq 1 ]; then
        if [[ ${cur} == -* ]] ; then
            COMPREPLY=( $(compgen -W "--config --json --quiet --no-color --verbose --log-json --version" -- ${cur}) )
        else
            COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        fi
        return 0
    fi

    case "${prev}" in
        --role)
            COMPREPLY=( $(compgen -W "ingest assembly all" -- ${cur}) )
            return 0
            ;;
        --compression)
            COMPREPLY=( $(compgen -W "fast balanced best" -- ${cur}) )
            return 0
            ;;
        --llm-provider)
            COMPREPLY=( $(compgen -W "openai ollama mock" -- ${cur}) )
            return 0
            ;;
    esac

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        serve)
            COMPREPLY=( $(compgen -W "--role --host --port --allow-any-origin --generate" -- ${cur}) )
            ;;
        ingest)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--job-id --git-ref --out --embed --embedder-url --pack --generate --llm-provider --workers --compression --created-at --metrics-addr" -- ${cur}) )
            else
                COMPREPLY=( $(compgen -f -- ${cur}) )
            fi
            ;;
        inspect)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json --clusters" -- ${cur}) )
            else
                COMPREPLY=( $(compgen -f -X '!*.docpack' -- ${cur}) )
            fi
            ;;
        init)
            COMPREPLY=( $(compgen -W "--force --yes --embedder-url --llm-provider --llm-model --llm-url" -- ${cur}) )
            ;;
        version)
            COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _doctown_completion doctown
`

const zshCompletion = `#compdef doctown

# Zsh completion for doctown
#   doctown completion zsh > "${fpath[1]}/_doctown"

_doctown() {
    local -a commands
    commands=(
        'serve:Start the ingest and assembly HTTP services'
        'ingest:Ingest a repository (zip, directory or GitHub URL)'
        'inspect:Verify a docpack and print its manifest'
        'init:Write a doctown.yaml with the defaults'
        'version:Print version information'
        'completion:Generate a shell completion script'
    )

    _arguments -C \
        '--config[Path to doctown.yaml]:config file:_files -g "*.yaml"' \
        '--json[Print results and errors as JSON]' \
        '(-q --quiet)'{-q,--quiet}'[Suppress progress output]' \
        '--no-color[Disable colored output]' \
        '*'{-v,--verbose}'[Increase log verbosity]' \
        '--log-json[Write logs as JSON]' \
        '(- *)--version[Show version and exit]' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                serve)
                    _arguments \
                        '--role[Services to run]:role:(ingest assembly all)' \
                        '--host[Listen host]:host:' \
                        '--port[Listen port]:port:' \
                        '--allow-any-origin[Answer CORS requests from any origin]' \
                        '--generate[Mount POST /generate]'
                    ;;
                ingest)
                    _arguments \
                        '--job-id[Job id]:id:' \
                        '--git-ref[Branch, tag or commit]:ref:' \
                        '(-o --out)'{-o,--out}'[Write chunks as JSON lines]:file:_files' \
                        '--embed[Embed chunks and assemble the symbol graph]' \
                        '--embedder-url[Embedding worker base URL]:url:' \
                        '--pack[Write a docpack]:file:_files -g "*.docpack"' \
                        '--generate[Generate symbol documentation with an LLM]' \
                        '--llm-provider[LLM provider]:provider:(openai ollama mock)' \
                        '--workers[Parallel file workers]:workers:' \
                        '--compression[Docpack compression]:level:(fast balanced best)' \
                        '--created-at[Fixed RFC 3339 created_at]:time:' \
                        '--metrics-addr[Prometheus metrics address]:address:' \
                        '1:source:_files'
                    ;;
                inspect)
                    _arguments \
                        '--json[Output as JSON]' \
                        '--clusters[Number of clusters to list]:count:' \
                        '1:docpack:_files -g "*.docpack"'
                    ;;
                init)
                    _arguments \
                        '--force[Overwrite an existing file]' \
                        '(-y --yes)'{-y,--yes}'[Use the defaults without prompting]' \
                        '--embedder-url[Embedding worker base URL]:url:' \
                        '--llm-provider[LLM provider]:provider:(openai ollama mock)' \
                        '--llm-model[LLM model name]:model:' \
                        '--llm-url[LLM API base URL]:url:'
                    ;;
                version)
                    _arguments '--json[Output as JSON]'
                    ;;
                completion)
                    _arguments '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_doctown
`

const fishCompletion = `# Fish completion for doctown
#   doctown completion fish | source

complete -c doctown -f -n "__fish_use_subcommand" -a "serve" -d "Start the ingest and assembly HTTP services"
complete -c doctown -f -n "__fish_use_subcommand" -a "ingest" -d "Ingest a repository"
complete -c doctown -f -n "__fish_use_subcommand" -a "inspect" -d "Verify a docpack and print its manifest"
complete -c doctown -f -n "__fish_use_subcommand" -a "init" -d "Write a doctown.yaml with the defaults"
complete -c doctown -f -n "__fish_use_subcommand" -a "version" -d "Print version information"
complete -c doctown -f -n "__fish_use_subcommand" -a "completion" -d "Generate a shell completion script"

complete -c doctown -n "__fish_use_subcommand" -l config -d "Path to doctown.yaml" -r
complete -c doctown -n "__fish_use_subcommand" -l json -d "Print results and errors as JSON"
complete -c doctown -n "__fish_use_subcommand" -s q -l quiet -d "Suppress progress output"
complete -c doctown -n "__fish_use_subcommand" -l no-color -d "Disable colored output"
complete -c doctown -n "__fish_use_subcommand" -s v -l verbose -d "Increase log verbosity"
complete -c doctown -n "__fish_use_subcommand" -l log-json -d "Write logs as JSON"
complete -c doctown -n "__fish_use_subcommand" -l version -d "Show version and exit"

complete -c doctown -n "__fish_seen_subcommand_from serve" -l role -d "Services to run" -xa "ingest assembly all"
complete -c doctown -n "__fish_seen_subcommand_from serve" -l host -d "Listen host" -r
complete -c doctown -n "__fish_seen_subcommand_from serve" -l port -d "Listen port" -r
complete -c doctown -n "__fish_seen_subcommand_from serve" -l allow-any-origin -d "Answer CORS requests from any origin"
complete -c doctown -n "__fish_seen_subcommand_from serve" -l generate -d "Mount POST /generate"

complete -c doctown -n "__fish_seen_subcommand_from ingest" -l job-id -d "Job id" -r
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l git-ref -d "Branch, tag or commit" -r
complete -c doctown -n "__fish_seen_subcommand_from ingest" -s o -l out -d "Write chunks as JSON lines" -r
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l embed -d "Embed chunks and assemble the symbol graph"
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l embedder-url -d "Embedding worker base URL" -r
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l pack -d "Write a docpack" -r
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l generate -d "Generate symbol documentation with an LLM"
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l llm-provider -d "LLM provider" -xa "openai ollama mock"
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l workers -d "Parallel file workers" -r
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l compression -d "Docpack compression" -xa "fast balanced best"
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l created-at -d "Fixed RFC 3339 created_at" -r
complete -c doctown -n "__fish_seen_subcommand_from ingest" -l metrics-addr -d "Prometheus metrics address" -r

complete -c doctown -n "__fish_seen_subcommand_from inspect" -l json -d "Output as JSON"
complete -c doctown -n "__fish_seen_subcommand_from inspect" -l clusters -d "Number of clusters to list" -r

complete -c doctown -n "__fish_seen_subcommand_from init" -l force -d "Overwrite an existing file"
complete -c doctown -n "__fish_seen_subcommand_from init" -s y -l yes -d "Use the defaults without prompting"
complete -c doctown -n "__fish_seen_subcommand_from init" -l embedder-url -d "Embedding worker base URL" -r
complete -c doctown -n "__fish_seen_subcommand_from init" -l llm-provider -d "LLM provider" -xa "openai ollama mock"
complete -c doctown -n "__fish_seen_subcommand_from init" -l llm-model -d "LLM model name" -r
complete -c doctown -n "__fish_seen_subcommand_from init" -l llm-url -d "LLM API base URL" -r

complete -c doctown -n "__fish_seen_subcommand_from version" -l json -d "Output as JSON"

complete -c doctown -n "__fish_seen_subcommand_from completion" -f -a "bash zsh fish"
`

// completionScripts maps a shell name to its completion script.
var completionScripts = map[string]string{
	"bash": bashCompletion,
	"zsh":  zshCompletion,
	"fish": fishCompletion,
}

// runCompletion executes the 'completion' command, printing the script for
// the named shell to stdout.
//
// Examples:
//
//	source <(doctown completion bash)
//	doctown completion zsh > "${fpath[1]}/_doctown"
//	doctown completion fish | source
func runCompletion(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doctown completion <bash|zsh|fish>

Prints a shell completion script.

Bash:
  source <(doctown completion bash)
  echo 'source <(doctown completion bash)' >> ~/.bashrc

Zsh:
  doctown completion zsh > "${fpath[1]}/_doctown"

Fish:
  doctown completion fish > ~/.config/fish/completions/doctown.fish
`)
	}
	parseArgs(fs, args)

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command takes exactly one argument: the shell name",
			"Run 'doctown completion bash', 'doctown completion zsh' or 'doctown completion fish'",
		), globals.JSON)
	}
	script, ok := completionScripts[fs.Arg(0)]
	if !ok {
		errors.FatalError(errors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell %q is not supported. Valid options: bash, zsh, fish", fs.Arg(0)),
			"Run 'doctown completion bash', 'doctown completion zsh' or 'doctown completion fish'",
		), globals.JSON)
	}
	fmt.Print(script)
}
