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

package embedder

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsEmbedder holds Prometheus metrics for the embedder client.
type metricsEmbedder struct {
	once sync.Once

	requests  *prometheus.CounterVec
	retries   prometheus.Counter
	cacheHits prometheus.Counter
	chunks    prometheus.Counter

	batchDuration prometheus.Histogram
}

var embMetrics metricsEmbedder

func (m *metricsEmbedder) init() {
	m.once.Do(func() {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_embed_requests_total", Help: "Embed batches by result"}, []string{"result"})
		m.retries = prometheus.NewCounter(prometheus.CounterOpts{Name: "doctown_embed_retries_total", Help: "Embed batch retries"})
		m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "doctown_embed_cache_hits_total", Help: "Chunks served from the vector cache"})
		m.chunks = prometheus.NewCounter(prometheus.CounterOpts{Name: "doctown_embed_chunks_total", Help: "Chunks sent to the provider"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "doctown_embed_batch_seconds", Help: "Embed batch duration", Buckets: buckets})

		prometheus.MustRegister(m.requests, m.retries, m.cacheHits, m.chunks, m.batchDuration)
	})
}

func recordBatch(result string, n int, d time.Duration) {
	embMetrics.init()
	embMetrics.requests.WithLabelValues(result).Inc()
	embMetrics.chunks.Add(float64(n))
	embMetrics.batchDuration.Observe(d.Seconds())
}
func recordRetry()          { embMetrics.init(); embMetrics.retries.Inc() }
func recordCacheHits(n int) { embMetrics.init(); embMetrics.cacheHits.Add(float64(n)) }
