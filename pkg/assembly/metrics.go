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

package assembly

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsAssembly holds Prometheus metrics for the assembly engine.
type metricsAssembly struct {
	once sync.Once

	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	edges      *prometheus.CounterVec

	duration prometheus.Histogram
}

var asmMetrics metricsAssembly

func (m *metricsAssembly) init() {
	m.once.Do(func() {
		m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_assembly_runs_total", Help: "Assembly runs by status"}, []string{"status"})
		m.iterations = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "doctown_assembly_kmeans_iterations", Help: "K-means iterations per run", Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 300}})
		m.edges = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_assembly_edges_total", Help: "Graph edges built by kind"}, []string{"kind"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.duration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "doctown_assembly_seconds", Help: "Assembly run duration", Buckets: buckets})

		prometheus.MustRegister(m.runs, m.iterations, m.edges, m.duration)
	})
}

func recordRun(status string, d time.Duration) {
	asmMetrics.init()
	asmMetrics.runs.WithLabelValues(status).Inc()
	asmMetrics.duration.Observe(d.Seconds())
}
func recordIterations(n int)           { asmMetrics.init(); asmMetrics.iterations.Observe(float64(n)) }
func recordEdges(kind EdgeKind, n int) { asmMetrics.init(); asmMetrics.edges.WithLabelValues(string(kind)).Add(float64(n)) }
