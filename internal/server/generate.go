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
	"github.com/kraklabs/doctown/pkg/ids"
	"github.com/kraklabs/doctown/pkg/llm"
)

type generateSymbol struct {
	SymbolID string                 `json:"symbol_id"`
	Context  assembly.SymbolContext `json:"context"`
}

type generateRequest struct {
	JobID   string           `json:"job_id"`
	Symbols []generateSymbol `json:"symbols"`
}

type generateResponse struct {
	JobID             string                 `json:"job_id"`
	DocumentedSymbols []llm.DocumentedSymbol `json:"documented_symbols"`
	TotalTokens       int                    `json:"total_tokens"`
	DurationMS        int64                  `json:"duration_ms"`
	Warnings          []string               `json:"warnings,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxAssembleBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if err := ids.ValidateJobID(req.JobID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	contexts := make([]assembly.SymbolContext, len(req.Symbols))
	for i, sym := range req.Symbols {
		contexts[i] = sym.Context
		if contexts[i].SymbolID == "" {
			contexts[i].SymbolID = sym.SymbolID
		}
	}

	docs, err := s.documenter.Document(r.Context(), contexts)
	if err != nil {
		s.logger.Warn("generate.request.failed", "job_id", req.JobID, "err", err)
		respondError(w, errors.HTTPStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, generateResponse{
		JobID:             req.JobID,
		DocumentedSymbols: docs.Symbols,
		TotalTokens:       docs.TotalTokens(),
		DurationMS:        docs.Duration.Milliseconds(),
		Warnings:          docs.Warnings,
	})
}
