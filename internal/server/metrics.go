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

package server

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsServer holds Prometheus metrics for the HTTP layer.
type metricsServer struct {
	once sync.Once

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	streams  prometheus.Gauge
}

var srvMetrics metricsServer

func (m *metricsServer) init() {
	m.once.Do(func() {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_http_requests_total", Help: "HTTP requests by route and status code"}, []string{"route", "code"})
		m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "doctown_http_request_seconds", Help: "HTTP request duration by route", Buckets: prometheus.DefBuckets}, []string{"route"})
		m.streams = prometheus.NewGauge(prometheus.GaugeOpts{Name: "doctown_http_ingest_streams", Help: "Open ingest event streams"})

		prometheus.MustRegister(m.requests, m.duration, m.streams)
	})
}

func recordRequest(route, code string, d time.Duration) {
	srvMetrics.init()
	srvMetrics.requests.WithLabelValues(route, code).Inc()
	srvMetrics.duration.WithLabelValues(route).Observe(d.Seconds())
}

func streamOpened() { srvMetrics.init(); srvMetrics.streams.Inc() }
func streamClosed() { srvMetrics.init(); srvMetrics.streams.Dec() }
