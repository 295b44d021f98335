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

package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() Context {
	return Context{JobID: "job_test1234", RepoURL: "https://github.com/acme/widgets", GitRef: "main"}
}

func TestEventType_IsTerminal(t *testing.T) {
	assert.True(t, IngestCompleted.IsTerminal())
	assert.True(t, AssemblyCompleted.IsTerminal())
	assert.False(t, IngestStarted.IsTerminal())
	assert.False(t, IngestChunkCreated.IsTerminal())
	assert.False(t, EventType("other.completed.v1").IsTerminal())
}

func TestNew_SequenceIncreases(t *testing.T) {
	var last uint64
	for i := 0; i < 50; i++ {
		e := New(IngestFileDetected, testContext(), FileDetectedPayload{FilePath: "a.rs"})
		assert.Greater(t, e.Sequence, last)
		last = e.Sequence
	}
}

func TestEnvelope_Validate(t *testing.T) {
	ok := New(IngestStarted, testContext(), IngestStartedPayload{RepoURL: "x", GitRef: "main"})
	require.NoError(t, ok.Validate())

	done := New(IngestCompleted, testContext(), IngestCompletedPayload{}).WithStatus(StatusSuccess)
	require.NoError(t, done.Validate())

	tests := []struct {
		name string
		env  Envelope
		want error
	}{
		{"bad id", func() Envelope { e := ok; e.EventID = "xyz"; return e }(), ErrInvalidEventID},
		{"unknown type", func() Envelope { e := ok; e.EventType = "ingest.unknown.v1"; return e }(), ErrUnknownEventType},
		{"empty repo", func() Envelope { e := ok; e.Context.RepoURL = ""; return e }(), ErrEmptyRepoURL},
		{"terminal without status", New(IngestCompleted, testContext(), nil), ErrMissingStatus},
		{"status on non-terminal", ok.WithStatus(StatusFailed), ErrUnexpectedStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.env.Validate(), tt.want)
		})
	}
}

func TestEnvelope_JSONShape(t *testing.T) {
	e := New(IngestFileSkipped, testContext(), FileSkippedPayload{FilePath: "Cargo.lock", Reason: SkipLockFile}).
		WithTrace("trace_0123456789")
	data, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "ingest.file_skipped.v1", raw["event_type"])
	assert.NotContains(t, raw, "status")

	payload := raw["payload"].(map[string]any)
	assert.Equal(t, "lock_file", payload["reason"])

	meta := raw["meta"].(map[string]any)
	assert.Equal(t, "trace_0123456789", meta["trace_id"])
	assert.NotContains(t, meta, "tags")

	ctx := raw["context"].(map[string]any)
	assert.Equal(t, "job_test1234", ctx["job_id"])
	assert.NotContains(t, ctx, "user_id")
}
