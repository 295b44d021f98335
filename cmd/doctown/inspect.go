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
	"sort"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/doctown/internal/errors"
	"github.com/kraklabs/doctown/internal/output"
	"github.com/kraklabs/doctown/internal/ui"
	"github.com/kraklabs/doctown/pkg/docpack"
)

// inspectReport is the --json form of 'inspect'.
type inspectReport struct {
	Path       string               `json:"path"`
	SizeBytes  int64                `json:"size_bytes"`
	Manifest   docpack.Manifest     `json:"manifest"`
	Graph      docpack.GraphMetrics `json:"graph_metrics"`
	EdgeKinds  map[string]int       `json:"edge_kinds"`
	Clusters   []docpack.Cluster    `json:"clusters"`
	Languages  map[string]int       `json:"languages"`
	Embeddings int                  `json:"embeddings"`
	Contexts   int                  `json:"symbol_contexts"`
}

// runInspect executes the 'inspect' command. Reading a docpack verifies
// its structure, schema version and checksum; a damaged file exits with
// the integrity error code.
func runInspect(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	top := fs.Int("clusters", 10, "Number of clusters to list (0 for all)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: doctown inspect <file.docpack> [options]

Verifies a docpack and prints its manifest and statistics.

Options:
`)
		fs.PrintDefaults()
	}
	parseArgs(fs, args)
	asJSON := *jsonOut || globals.JSON

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Expected exactly one docpack",
			fmt.Sprintf("got %d arguments", fs.NArg()),
			"Usage: doctown inspect <file.docpack>",
		), asJSON)
	}
	path := fs.Arg(0)

	info, err := os.Stat(path)
	if err != nil {
		errors.FatalError(err, asJSON)
	}
	dp, err := docpack.ReadFile(path)
	if err != nil {
		errors.FatalError(err, asJSON)
	}

	report := inspectReport{
		Path:      path,
		SizeBytes: info.Size(),
		Manifest:  dp.Manifest,
		Graph:     dp.Graph.Metrics,
		EdgeKinds: make(map[string]int),
		Clusters:  dp.Clusters.Clusters,
		Languages: make(map[string]int),
	}
	for _, e := range dp.Graph.Edges {
		report.EdgeKinds[e.Kind]++
	}
	for _, f := range dp.SourceMap.Files {
		report.Languages[f.Language]++
	}
	if dp.Embeddings != nil {
		report.Embeddings = dp.Embeddings.Len()
	}
	if dp.SymbolContexts != nil {
		report.Contexts = len(dp.SymbolContexts.Contexts)
	}

	if asJSON {
		if err := output.JSON(report); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	printInspect(report, *top)
}

func printInspect(r inspectReport, top int) {
	m := r.Manifest
	ui.Header("Docpack " + m.DocpackID)
	ui.Row("File:", fmt.Sprintf("%s (%s)", r.Path, ui.ByteText(r.SizeBytes)))
	ui.Row("Schema:", m.SchemaVersion)
	ui.Row("Created:", m.CreatedAt)
	ui.Row("Generator:", fmt.Sprintf("%s (pipeline %s)", m.Generator.Version, m.Generator.PipelineVersion))
	ui.Row("Checksum:", ui.DimText(m.Checksum.Algorithm+":"+m.Checksum.Value))

	ui.SubHeader("Source")
	ui.Row("Repository:", m.Source.RepoURL)
	ui.Row("Ref:", m.Source.GitRef)
	if m.Source.CommitHash != "" {
		ui.Row("Commit:", m.Source.CommitHash)
	}

	ui.SubHeader("Statistics")
	ui.Row("Files:", ui.CountText(m.Statistics.FileCount))
	ui.Row("Symbols:", ui.CountText(m.Statistics.SymbolCount))
	ui.Row("Clusters:", ui.CountText(m.Statistics.ClusterCount))
	ui.Row("Graph:", fmt.Sprintf("density %.4f, average degree %.2f", r.Graph.Density, r.Graph.AvgDegree))
	for _, kind := range sortedKeys(r.EdgeKinds) {
		ui.Row("  "+kind+" edges:", r.EdgeKinds[kind])
	}
	if m.Optional.HasEmbeddings {
		ui.Row("Embeddings:", fmt.Sprintf("%d vectors, %d dimensions", r.Embeddings, m.Statistics.EmbeddingDimensions))
	} else {
		ui.Row("Embeddings:", ui.DimText("none"))
	}
	if m.Optional.HasSymbolContexts {
		ui.Row("Contexts:", ui.CountText(r.Contexts))
	}

	if len(r.Languages) > 0 {
		ui.SubHeader("Languages")
		for _, lang := range sortedKeys(r.Languages) {
			ui.Row(lang+":", fmt.Sprintf("%d files", r.Languages[lang]))
		}
	}

	if len(r.Clusters) > 0 {
		ui.SubHeader("Clusters")
		clusters := append([]docpack.Cluster(nil), r.Clusters...)
		sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].MemberCount > clusters[j].MemberCount })
		if top > 0 && len(clusters) > top {
			clusters = clusters[:top]
		}
		for _, c := range clusters {
			ui.Row(c.ClusterID+":", fmt.Sprintf("%s %s", c.Label, ui.DimText(fmt.Sprintf("(%d symbols)", c.MemberCount))))
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
