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
	"encoding/json"
	"net/http"

	"github.com/kraklabs/doctown/internal/errors"
	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/packer"
)

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var req assembly.Request
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxAssembleBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondDecodeError(w, err)
		return
	}

	resp, err := s.assembly.Assemble(r.Context(), &req)
	if err != nil {
		s.logger.Warn("assemble.request.failed", "job_id", req.JobID, "err", err)
		respondError(w, errors.HTTPStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePack(w http.ResponseWriter, r *http.Request) {
	var req packer.PackRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxAssembleBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondDecodeError(w, err)
		return
	}

	resp, err := s.packer.Pack(&req)
	if err != nil {
		s.logger.Warn("pack.request.failed", "repo_url", req.RepoURL, "err", err)
		respondError(w, errors.HTTPStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
