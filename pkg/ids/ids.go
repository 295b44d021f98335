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

// Package ids validates and generates the prefixed identifiers that flow
// through events, assembly requests and docpacks.
package ids

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is wrapped by every validation failure.
var ErrInvalidID = errors.New("invalid identifier")

const (
	JobPrefix    = "job_"
	ChunkPrefix  = "chunk_"
	SymbolPrefix = "sym_"
	EventPrefix  = "evt_"
	TracePrefix  = "trace_"
)

// ValidateJobID requires "job_" followed by 4 to 60 characters from
// [A-Za-z0-9_].
func ValidateJobID(id string) error {
	if !strings.HasPrefix(id, JobPrefix) {
		return fmt.Errorf("%w: job id %q must start with %q", ErrInvalidID, id, JobPrefix)
	}
	rest := id[len(JobPrefix):]
	if len(rest) < 4 || len(rest) > 60 {
		return fmt.Errorf("%w: job id %q must have 4-60 characters after the prefix", ErrInvalidID, id)
	}
	for _, r := range rest {
		if !isWordRune(r) {
			return fmt.Errorf("%w: job id %q contains %q", ErrInvalidID, id, r)
		}
	}
	return nil
}

// ValidateChunkID requires the "chunk_" prefix and at least 10 characters.
func ValidateChunkID(id string) error { return validatePrefixed("chunk", id, ChunkPrefix, 10) }

// ValidateSymbolID requires the "sym_" prefix and at least 8 characters.
func ValidateSymbolID(id string) error { return validatePrefixed("symbol", id, SymbolPrefix, 8) }

// ValidateEventID requires the "evt_" prefix and at least 8 characters.
func ValidateEventID(id string) error { return validatePrefixed("event", id, EventPrefix, 8) }

// ValidateTraceID requires the "trace_" prefix and at least 10 characters.
func ValidateTraceID(id string) error { return validatePrefixed("trace", id, TracePrefix, 10) }

func validatePrefixed(kind, id, prefix string, minLen int) error {
	if !strings.HasPrefix(id, prefix) {
		return fmt.Errorf("%w: %s id %q must start with %q", ErrInvalidID, kind, id, prefix)
	}
	if len(id) < minLen {
		return fmt.Errorf("%w: %s id %q shorter than %d characters", ErrInvalidID, kind, id, minLen)
	}
	return nil
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func shortUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// NewJobID returns "job_" plus 16 random hex characters.
func NewJobID() string { return JobPrefix + shortUUID() }

// NewEventID returns "evt_" plus a full random UUID.
func NewEventID() string { return EventPrefix + uuid.NewString() }

// NewTraceID returns "trace_" plus a full random UUID.
func NewTraceID() string { return TracePrefix + uuid.NewString() }
