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

package ui

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/doctown/pkg/events"
)

// ProgressConfig determines if and how progress is displayed.
type ProgressConfig struct {
	// Enabled is false for --quiet, --json, and when stderr is not a TTY.
	Enabled bool
	Writer  io.Writer
	NoColor bool
}

// NewProgressConfig enables progress only on an interactive stderr.
func NewProgressConfig(quiet, noColor bool) ProgressConfig {
	return ProgressConfig{
		Enabled: !quiet && isatty.IsTerminal(os.Stderr.Fd()),
		Writer:  os.Stderr,
		NoColor: noColor,
	}
}

// NewProgressBar returns a styled bar, or nil when progress is disabled.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner returns an indeterminate spinner, or nil when progress is
// disabled.
func NewSpinner(cfg ProgressConfig, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(cfg.Writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!cfg.NoColor),
	)
}

// IngestProgress advances a bar from the ingest event stream: one step
// per file, whether it was processed or skipped. It also keeps the tallies
// printed in the final summary. A nil bar only counts.
type IngestProgress struct {
	bar *progressbar.ProgressBar

	mu       sync.Mutex
	detected int
	skipped  int
	chunks   int
	reasons  map[events.SkipReason]int
}

// NewIngestProgress tracks a job over total candidate files.
func NewIngestProgress(cfg ProgressConfig, total int) *IngestProgress {
	return &IngestProgress{
		bar:     NewProgressBar(cfg, int64(total), "Ingesting"),
		reasons: make(map[events.SkipReason]int),
	}
}

// Observe consumes one envelope.
func (p *IngestProgress) Observe(env events.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch env.EventType {
	case events.IngestFileDetected:
		p.detected++
		p.step()
	case events.IngestFileSkipped:
		p.skipped++
		if sp, ok := env.Payload.(events.FileSkippedPayload); ok {
			p.reasons[sp.Reason]++
		}
		p.step()
	case events.IngestChunkCreated:
		p.chunks++
	case events.IngestCompleted:
		if p.bar != nil {
			_ = p.bar.Finish()
		}
	}
}

func (p *IngestProgress) step() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

// Counts returns files detected, files skipped and chunks created so far.
func (p *IngestProgress) Counts() (detected, skipped, chunks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detected, p.skipped, p.chunks
}

// SkipReasons returns a copy of the per-reason skip counts.
func (p *IngestProgress) SkipReasons() map[events.SkipReason]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[events.SkipReason]int, len(p.reasons))
	for k, v := range p.reasons {
		out[k] = v
	}
	return out
}
