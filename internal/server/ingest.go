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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kraklabs/doctown/pkg/events"
	"github.com/kraklabs/doctown/pkg/ids"
	"github.com/kraklabs/doctown/pkg/ingestion"
)

const defaultGitRef = "main"

// IngestRequest is the POST /ingest body. GET /ingest takes the same
// fields as query parameters.
type IngestRequest struct {
	RepoURL string `json:"repo_url"`
	GitRef  string `json:"git_ref"`
	JobID   string `json:"job_id"`
}

// Validate checks the request before any event is streamed.
func (r *IngestRequest) Validate() error {
	if r.RepoURL == "" {
		return errors.New("repo_url cannot be empty")
	}
	if _, err := ingestion.ParseGitHubURL(r.RepoURL); err != nil {
		return fmt.Errorf("invalid GitHub URL: %w", err)
	}
	if r.JobID == "" {
		return errors.New("job_id cannot be empty")
	}
	if err := ids.ValidateJobID(r.JobID); err != nil {
		return fmt.Errorf("invalid job_id: %w", err)
	}
	return nil
}

func (s *Server) handleIngestPost(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxIngestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondDecodeError(w, err)
		return
	}
	s.streamIngest(w, r, req)
}

func (s *Server) handleIngestGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.streamIngest(w, r, IngestRequest{
		RepoURL: q.Get("repo_url"),
		GitRef:  q.Get("git_ref"),
		JobID:   q.Get("job_id"),
	})
}

// streamIngest runs one job and relays its envelopes as server-sent
// events. The channel is always drained until the orchestrator closes it,
// even after the client has gone away, so the job can emit its terminal
// event and release its resources.
func (s *Server) streamIngest(w http.ResponseWriter, r *http.Request, req IngestRequest) {
	if req.GitRef == "" {
		req.GitRef = defaultGitRef
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	job := ingestion.Job{ID: req.JobID, RepoURL: req.RepoURL, GitRef: req.GitRef}
	out := make(chan events.Envelope, s.cfg.ChannelCapacity)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.ingest.Run(ctx, job, out); err != nil {
			s.logger.Warn("ingest.stream.job_failed", "job_id", job.ID, "err", err)
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	streamOpened()
	defer streamClosed()

	keepalive := time.NewTicker(s.cfg.Keepalive)
	defer keepalive.Stop()

	gone := false
	write := func(p []byte) {
		if gone {
			return
		}
		if _, err := w.Write(p); err != nil {
			s.logger.Info("ingest.stream.client_gone", "job_id", job.ID, "err", err)
			gone = true
			cancel()
			return
		}
		flusher.Flush()
	}

	for {
		select {
		case env, ok := <-out:
			if !ok {
				<-done
				return
			}
			frame, err := sseFrame(env)
			if err != nil {
				s.logger.Error("ingest.stream.encode_error", "job_id", job.ID, "event_type", env.EventType, "err", err)
				continue
			}
			write(frame)
		case <-keepalive.C:
			write([]byte(": keepalive\n\n"))
		}
	}
}

// sseFrame renders one envelope as a "data:" frame.
func sseFrame(env events.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

func respondDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, io.EOF):
		respondError(w, http.StatusBadRequest, "request body is empty")
	default:
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
}
