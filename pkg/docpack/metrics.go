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

package docpack

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsDocpack holds Prometheus metrics for docpack encoding.
type metricsDocpack struct {
	once sync.Once

	writes prometheus.Counter
	reads  *prometheus.CounterVec
	size   prometheus.Histogram
}

var dpMetrics metricsDocpack

func (m *metricsDocpack) init() {
	m.once.Do(func() {
		m.writes = prometheus.NewCounter(prometheus.CounterOpts{Name: "doctown_docpack_writes_total", Help: "Docpacks written"})
		m.reads = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_docpack_reads_total", Help: "Docpack reads by result"}, []string{"result"})
		m.size = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "doctown_docpack_bytes", Help: "Compressed docpack size", Buckets: prometheus.ExponentialBuckets(1024, 4, 10)})

		prometheus.MustRegister(m.writes, m.reads, m.size)
	})
}

func recordWrite(n int) {
	dpMetrics.init()
	dpMetrics.writes.Inc()
	dpMetrics.size.Observe(float64(n))
}
func recordRead(result string) { dpMetrics.init(); dpMetrics.reads.WithLabelValues(result).Inc() }
