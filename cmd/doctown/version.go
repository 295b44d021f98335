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
	"runtime"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/doctown/internal/errors"
	"github.com/kraklabs/doctown/internal/output"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// runVersion prints build information.
func runVersion(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	parseArgs(fs, args)

	info := versionInfo{Version: version, Commit: commit, BuildDate: date, GoVersion: runtime.Version()}
	if *jsonOut || globals.JSON {
		if err := output.JSON(info); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	fmt.Fprintf(os.Stdout, "doctown version %s\n", info.Version)
	fmt.Fprintf(os.Stdout, "commit: %s\n", info.Commit)
	fmt.Fprintf(os.Stdout, "built: %s\n", info.BuildDate)
	fmt.Fprintf(os.Stdout, "go: %s\n", info.GoVersion)
}
