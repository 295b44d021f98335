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
	"bytes"
	"os"
	"testing"

	"github.com/kraklabs/doctown/pkg/events"
)

func TestNewProgressConfig(t *testing.T) {
	tests := []struct {
		name    string
		quiet   bool
		noColor bool
	}{
		{"default", false, false},
		{"quiet", true, false},
		{"no color", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewProgressConfig(tt.quiet, tt.noColor)
			// stderr is not a TTY under go test.
			if cfg.Enabled {
				t.Error("progress should be disabled without a TTY")
			}
			if cfg.NoColor != tt.noColor {
				t.Errorf("NoColor = %v, want %v", cfg.NoColor, tt.noColor)
			}
			if cfg.Writer != os.Stderr {
				t.Error("Writer should be os.Stderr")
			}
		})
	}
}

func TestNewProgressBar(t *testing.T) {
	if bar := NewProgressBar(ProgressConfig{}, 10, "x"); bar != nil {
		t.Error("disabled config must return nil")
	}

	var buf bytes.Buffer
	bar := NewProgressBar(ProgressConfig{Enabled: true, Writer: &buf, NoColor: true}, 10, "Ingesting")
	if bar == nil {
		t.Fatal("enabled config must return a bar")
	}
	_ = bar.Set(5)
	_ = bar.Finish()
}

func TestNewSpinner(t *testing.T) {
	if s := NewSpinner(ProgressConfig{}, "x"); s != nil {
		t.Error("disabled config must return nil")
	}

	var buf bytes.Buffer
	s := NewSpinner(ProgressConfig{Enabled: true, Writer: &buf}, "Embedding")
	if s == nil {
		t.Fatal("enabled config must return a spinner")
	}
	_ = s.Add(1)
	_ = s.Finish()
}

func TestIngestProgress(t *testing.T) {
	ctx := events.Context{JobID: "job_progress", RepoURL: "local"}
	stream := []events.Envelope{
		events.New(events.IngestStarted, ctx, events.IngestStartedPayload{RepoURL: "local"}),
		events.New(events.IngestFileDetected, ctx, events.FileDetectedPayload{FilePath: "a.go"}),
		events.New(events.IngestChunkCreated, ctx, events.ChunkCreatedPayload{FilePath: "a.go"}),
		events.New(events.IngestChunkCreated, ctx, events.ChunkCreatedPayload{FilePath: "a.go"}),
		events.New(events.IngestFileSkipped, ctx, events.FileSkippedPayload{FilePath: "go.sum", Reason: events.SkipLockFile}),
		events.New(events.IngestFileSkipped, ctx, events.FileSkippedPayload{FilePath: "x.bin", Reason: events.SkipBinary}),
		events.New(events.IngestFileSkipped, ctx, events.FileSkippedPayload{FilePath: "y.bin", Reason: events.SkipBinary}),
		events.New(events.IngestCompleted, ctx, events.IngestCompletedPayload{}).WithStatus(events.StatusSuccess),
	}

	for _, cfg := range []ProgressConfig{{}, {Enabled: true, Writer: &bytes.Buffer{}, NoColor: true}} {
		p := NewIngestProgress(cfg, 4)
		for _, env := range stream {
			p.Observe(env)
		}

		detected, skipped, chunks := p.Counts()
		if detected != 1 || skipped != 3 || chunks != 2 {
			t.Errorf("Counts() = %d, %d, %d; want 1, 3, 2", detected, skipped, chunks)
		}
		reasons := p.SkipReasons()
		if reasons[events.SkipBinary] != 2 || reasons[events.SkipLockFile] != 1 {
			t.Errorf("SkipReasons() = %v", reasons)
		}
	}
}
