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

// Package server exposes the ingest, assembly and pack services over HTTP.
//
// One process can serve any subset of the services; the router only mounts
// the routes whose backends were supplied. Every role serves /health and
// /metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/doctown/internal/config"
	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/llm"
	"github.com/kraklabs/doctown/pkg/packer"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to the pipeline services.
type Server struct {
	cfg        config.ServerConfig
	version    string
	logger     *slog.Logger
	ingest     *ingestion.Orchestrator
	assembly   *assembly.Service
	packer     *packer.Packer
	documenter *llm.Documenter
}

// Option configures a Server.
type Option func(*Server)

// WithIngest mounts /ingest backed by o.
func WithIngest(o *ingestion.Orchestrator) Option {
	return func(s *Server) { s.ingest = o }
}

// WithAssembly mounts /assemble and /pack.
func WithAssembly(svc *assembly.Service, p *packer.Packer) Option {
	return func(s *Server) {
		s.assembly = svc
		s.packer = p
	}
}

// WithDocumenter mounts /generate backed by d.
func WithDocumenter(d *llm.Documenter) Option {
	return func(s *Server) { s.documenter = d }
}

// New creates a server. Zero limits in cfg take the config defaults.
func New(cfg config.ServerConfig, version string, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := config.Default().Server
	if cfg.MaxIngestBody <= 0 {
		cfg.MaxIngestBody = def.MaxIngestBody
	}
	if cfg.MaxAssembleBody <= 0 {
		cfg.MaxAssembleBody = def.MaxAssembleBody
	}
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = def.Keepalive
	}
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = def.ChannelCapacity
	}
	s := &Server{cfg: cfg, version: version, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors(s.cfg.CORSOrigins, s.cfg.AllowAnyOrigin))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if s.ingest != nil {
		r.Post("/ingest", s.handleIngestPost)
		r.Get("/ingest", s.handleIngestGet)
	}
	if s.assembly != nil {
		r.Post("/assemble", s.handleAssemble)
	}
	if s.packer != nil {
		r.Post("/pack", s.handlePack)
	}
	if s.documenter != nil {
		r.Post("/generate", s.handleGenerate)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// In-flight ingest streams see the cancellation and finish with a failed
// completed event.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", srv.Addr, "role", s.cfg.Role, "version", s.version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server.shutdown", "addr", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Service string `json:"service,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: s.version}
	if s.assembly != nil && s.ingest == nil {
		resp.Service = "assembly-worker"
	}
	respondJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
