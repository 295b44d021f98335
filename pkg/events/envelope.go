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

// Package events defines the versioned envelope streamed by the ingest and
// assembly services, together with their payloads.
//
// Every envelope carries a sequence number drawn from one process-wide
// counter. Terminal events (*.completed.v1) carry a status; no other event
// may.
package events

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kraklabs/doctown/pkg/ids"
)

// EventType names an event kind and version.
type EventType string

const (
	IngestStarted      EventType = "ingest.started.v1"
	IngestFileDetected EventType = "ingest.file_detected.v1"
	IngestFileSkipped  EventType = "ingest.file_skipped.v1"
	IngestChunkCreated EventType = "ingest.chunk_created.v1"
	IngestCompleted    EventType = "ingest.completed.v1"

	AssemblyStarted        EventType = "assembly.started.v1"
	AssemblyClusterCreated EventType = "assembly.cluster_created.v1"
	AssemblyGraphCompleted EventType = "assembly.graph_completed.v1"
	AssemblyCompleted      EventType = "assembly.completed.v1"
)

var knownTypes = map[EventType]bool{
	IngestStarted:          true,
	IngestFileDetected:     true,
	IngestFileSkipped:      true,
	IngestChunkCreated:     true,
	IngestCompleted:        true,
	AssemblyStarted:        true,
	AssemblyClusterCreated: true,
	AssemblyGraphCompleted: true,
	AssemblyCompleted:      true,
}

// Known reports whether t is a recognised event type.
func (t EventType) Known() bool { return knownTypes[t] }

// IsTerminal reports whether t ends a job's stream.
func (t EventType) IsTerminal() bool {
	return strings.HasSuffix(string(t), ".completed.v1") && t.Known()
}

// Status is the outcome carried by terminal events.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Context identifies the job an event belongs to.
type Context struct {
	JobID   string `json:"job_id"`
	RepoURL string `json:"repo_url"`
	GitRef  string `json:"git_ref,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// Meta carries optional tracing fields.
type Meta struct {
	ProducerVersion string   `json:"producer_version,omitempty"`
	TraceID         string   `json:"trace_id,omitempty"`
	ParentEventID   string   `json:"parent_event_id,omitempty"`
	IdempotencyKey  string   `json:"idempotency_key,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Envelope wraps one payload.
type Envelope struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  uint64    `json:"sequence"`
	Context   Context   `json:"context"`
	Meta      Meta      `json:"meta"`
	Payload   any       `json:"payload"`
	Status    Status    `json:"status,omitempty"`
}

var sequence atomic.Uint64

// NextSequence returns the next value of the process-wide counter.
func NextSequence() uint64 {
	return sequence.Add(1)
}

// New builds an envelope with a fresh event id, the current time and the
// next sequence number.
func New(t EventType, ctx Context, payload any) Envelope {
	return Envelope{
		EventID:   ids.NewEventID(),
		EventType: t,
		Timestamp: time.Now().UTC(),
		Sequence:  NextSequence(),
		Context:   ctx,
		Payload:   payload,
	}
}

// WithStatus sets the terminal status.
func (e Envelope) WithStatus(s Status) Envelope {
	e.Status = s
	return e
}

// WithParent records the event this one was caused by.
func (e Envelope) WithParent(parentID string) Envelope {
	e.Meta.ParentEventID = parentID
	return e
}

// WithTrace sets the trace id.
func (e Envelope) WithTrace(traceID string) Envelope {
	e.Meta.TraceID = traceID
	return e
}

// Validation errors.
var (
	ErrInvalidEventID   = errors.New("event_id is invalid")
	ErrUnknownEventType = errors.New("unrecognized event_type")
	ErrEmptyRepoURL     = errors.New("repo_url is empty")
	ErrMissingStatus    = errors.New("terminal event is missing status field")
	ErrUnexpectedStatus = errors.New("non-terminal event should not have status field")
)

// Validate checks the envelope's structural invariants.
func (e Envelope) Validate() error {
	if err := ids.ValidateEventID(e.EventID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEventID, e.EventID)
	}
	if !e.EventType.Known() {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, e.EventType)
	}
	if e.Context.RepoURL == "" {
		return ErrEmptyRepoURL
	}
	if e.EventType.IsTerminal() {
		if e.Status == "" {
			return ErrMissingStatus
		}
	} else if e.Status != "" {
		return ErrUnexpectedStatus
	}
	return nil
}
