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

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/doctown/pkg/events"
)

// metricsIngestion holds Prometheus metrics for the ingest pipeline.
type metricsIngestion struct {
	once sync.Once

	// Jobs
	jobs *prometheus.CounterVec

	// Files, by result: processed or the skip reason
	files *prometheus.CounterVec

	// Chunks
	chunks      prometheus.Counter
	syntaxFiles prometheus.Counter

	// Durations
	fetchDuration prometheus.Histogram
	fileDuration  prometheus.Histogram
	jobDuration   prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.jobs = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_ingest_jobs_total", Help: "Ingest jobs by terminal status"}, []string{"status"})
		m.files = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_ingest_files_total", Help: "Files seen by the filter gate, by result"}, []string{"result"})

		m.chunks = prometheus.NewCounter(prometheus.CounterOpts{Name: "doctown_ingest_chunks_total", Help: "Chunks emitted"})
		m.syntaxFiles = prometheus.NewCounter(prometheus.CounterOpts{Name: "doctown_ingest_syntax_error_files_total", Help: "Files parsed with syntax errors"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "doctown_ingest_fetch_seconds", Help: "Archive download duration", Buckets: buckets})
		m.fileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "doctown_ingest_file_seconds", Help: "Per-file parse, extract and chunk duration", Buckets: buckets})
		m.jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "doctown_ingest_job_seconds", Help: "Whole job duration", Buckets: buckets})

		prometheus.MustRegister(
			m.jobs, m.files,
			m.chunks, m.syntaxFiles,
			m.fetchDuration, m.fileDuration, m.jobDuration,
		)
	})
}

// record helpers - used by the orchestrator
func recordJob(status events.Status) { ingMetrics.init(); ingMetrics.jobs.WithLabelValues(string(status)).Inc() }
func recordFileProcessed()           { ingMetrics.init(); ingMetrics.files.WithLabelValues("processed").Inc() }
func recordFileSkipped(reason events.SkipReason) {
	ingMetrics.init()
	ingMetrics.files.WithLabelValues(string(reason)).Inc()
}
func recordChunk()                 { ingMetrics.init(); ingMetrics.chunks.Inc() }
func recordSyntaxErrors()          { ingMetrics.init(); ingMetrics.syntaxFiles.Inc() }
func observeFetch(d time.Duration) { ingMetrics.init(); ingMetrics.fetchDuration.Observe(d.Seconds()) }
func observeFile(d time.Duration)  { ingMetrics.init(); ingMetrics.fileDuration.Observe(d.Seconds()) }
func observeJob(d time.Duration)   { ingMetrics.init(); ingMetrics.jobDuration.Observe(d.Seconds()) }
