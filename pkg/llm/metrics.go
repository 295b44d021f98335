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

package llm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsLLM struct {
	once sync.Once

	chats  *prometheus.CounterVec
	tokens *prometheus.CounterVec
}

var llmMetrics metricsLLM

func (m *metricsLLM) init() {
	m.once.Do(func() {
		m.chats = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_llm_chats_total", Help: "Documentation chats by provider and result"}, []string{"provider", "result"})
		m.tokens = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "doctown_llm_tokens_total", Help: "LLM tokens by provider and direction"}, []string{"provider", "direction"})
		prometheus.MustRegister(m.chats, m.tokens)
	})
}

func recordChat(provider, result string, prompt, output int) {
	llmMetrics.init()
	llmMetrics.chats.WithLabelValues(provider, result).Inc()
	llmMetrics.tokens.WithLabelValues(provider, "prompt").Add(float64(prompt))
	llmMetrics.tokens.WithLabelValues(provider, "output").Add(float64(output))
}
