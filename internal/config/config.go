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

// Package config loads the doctown configuration file.
//
// Values are layered: built-in defaults, then the YAML file, then
// environment variables. Command-line flags are applied last by the CLI.
//
//	server:
//	  host: 127.0.0.1
//	  port: 8080
//	  role: all
//	ingest:
//	  workers: 8
//	  chunk:
//	    max_chunk_size: 4096
//	embedder:
//	  url: http://localhost:8000
//	assembly:
//	  seed: 42
//	packer:
//	  compression: balanced
//	llm:
//	  provider: openai
//	  model: gpt-4o-mini
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/doctown/internal/errors"
	"github.com/kraklabs/doctown/pkg/assembly"
	"github.com/kraklabs/doctown/pkg/docpack"
	"github.com/kraklabs/doctown/pkg/embedder"
	"github.com/kraklabs/doctown/pkg/ingestion"
	"github.com/kraklabs/doctown/pkg/llm"
)

// Environment variables read by Load.
const (
	EnvConfig      = "DOCTOWN_CONFIG"
	EnvHost        = "DOCTOWN_HOST"
	EnvPort        = "DOCTOWN_PORT"
	EnvRole        = "DOCTOWN_ROLE"
	EnvCORSOrigins = "DOCTOWN_CORS_ORIGINS"
	EnvLogLevel    = "DOCTOWN_LOG_LEVEL"
	EnvEmbedderURL = "EMBEDDING_URL"
	EnvLLMProvider = "DOCTOWN_LLM_PROVIDER"
	EnvLLMModel    = "DOCTOWN_LLM_MODEL"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "doctown.yaml"

// Server roles.
const (
	RoleIngest   = "ingest"
	RoleAssembly = "assembly"
	RoleAll      = "all"
)

const (
	defaultHost            = "127.0.0.1"
	defaultPort            = 8080
	defaultMaxIngestBody   = 10 << 20
	defaultMaxAssembleBody = 100 << 20
	defaultKeepalive       = 15 * time.Second
	defaultChannelCapacity = 100
	defaultEmbedderURL     = "http://localhost:8000"
)

// Config is the full configuration.
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Ingest   ingestion.Config `yaml:"ingest"`
	Embedder EmbedderConfig   `yaml:"embedder"`
	Assembly assembly.Config  `yaml:"assembly"`
	Packer   PackerConfig     `yaml:"packer"`
	LLM      llm.Config       `yaml:"llm"`
	Log      LogConfig        `yaml:"log"`
}

// ServerConfig configures the HTTP services.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Role            string        `yaml:"role"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	AllowAnyOrigin  bool          `yaml:"allow_any_origin"`
	MaxIngestBody   int64         `yaml:"max_ingest_body"`
	MaxAssembleBody int64         `yaml:"max_assemble_body"`
	Keepalive       time.Duration `yaml:"keepalive"`
	// ChannelCapacity bounds the events buffered between an ingest job and
	// its SSE stream.
	ChannelCapacity int `yaml:"channel_capacity"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// EmbedderConfig locates the embedding worker and tunes batching.
type EmbedderConfig struct {
	URL     string          `yaml:"url"`
	Timeout time.Duration   `yaml:"timeout"`
	Batch   embedder.Config `yaml:",inline"`
}

// PackerConfig configures docpack output.
type PackerConfig struct {
	Compression string `yaml:"compression"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            defaultHost,
			Port:            defaultPort,
			Role:            RoleAll,
			CORSOrigins:     []string{"http://localhost:5173"},
			MaxIngestBody:   defaultMaxIngestBody,
			MaxAssembleBody: defaultMaxAssembleBody,
			Keepalive:       defaultKeepalive,
			ChannelCapacity: defaultChannelCapacity,
		},
		Ingest: ingestion.DefaultConfig(),
		Embedder: EmbedderConfig{
			URL:     defaultEmbedderURL,
			Timeout: embedder.DefaultTimeout,
			Batch:   embedder.DefaultConfig(),
		},
		Assembly: assembly.DefaultConfig(),
		Packer:   PackerConfig{Compression: string(docpack.CompressionBalanced)},
		LLM:      llm.DefaultConfig(),
		Log:      LogConfig{Level: "info"},
	}
}

// Load builds the configuration from path (or $DOCTOWN_CONFIG, or
// ./doctown.yaml when present) and the environment. An explicitly named
// file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(data); err != nil {
			return nil, errors.NewConfigError(
				"Cannot parse configuration file",
				fmt.Sprintf("%s: %v", path, err),
				"Check the YAML syntax and field names",
				err,
			)
		}
	case explicit || !stderrors.Is(err, fs.ErrNotExist):
		return nil, errors.NewConfigError(
			"Cannot read configuration file",
			err.Error(),
			"Pass an existing file with --config or unset "+EnvConfig,
			err,
		)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result. The
// environment is not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, errors.NewConfigError("Cannot parse configuration", err.Error(), "Check the YAML syntax and field names", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewConfigError(
				"Invalid "+EnvPort,
				fmt.Sprintf("%q is not a port number", v),
				"Set "+EnvPort+" to a number between 1 and 65535",
				err,
			)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvRole); ok && v != "" {
		c.Server.Role = v
	}
	if v, ok := lookup(EnvCORSOrigins); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvEmbedderURL); ok && v != "" {
		c.Embedder.URL = v
	}
	if v, ok := lookup(EnvLLMProvider); ok && v != "" {
		c.LLM.Provider = v
	}
	if v, ok := lookup(EnvLLMModel); ok && v != "" {
		c.LLM.Model = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	s := c.Server
	if s.Port < 1 || s.Port > 65535 {
		add("server.port must be in 1..65535, got %d", s.Port)
	}
	switch s.Role {
	case RoleIngest, RoleAssembly, RoleAll:
	default:
		add("server.role must be one of ingest, assembly, all, got %q", s.Role)
	}
	if s.MaxIngestBody <= 0 {
		add("server.max_ingest_body must be positive")
	}
	if s.MaxAssembleBody <= 0 {
		add("server.max_assemble_body must be positive")
	}
	if s.Keepalive <= 0 {
		add("server.keepalive must be positive")
	}
	if s.ChannelCapacity <= 0 {
		add("server.channel_capacity must be positive")
	}

	if err := c.Ingest.Chunk.Validate(); err != nil {
		add("ingest.chunk: %v", err)
	}
	if c.Ingest.Filter.MaxFileSize <= 0 {
		add("ingest.filter.max_file_size must be positive")
	}
	if c.Ingest.MaxRepoSize < 0 {
		add("ingest.max_repo_size must not be negative")
	}
	if c.Ingest.Workers < 0 {
		add("ingest.workers must not be negative")
	}

	if c.Embedder.URL == "" {
		add("embedder.url is required")
	}
	if c.Embedder.Batch.BatchSize < 0 || c.Embedder.Batch.CacheSize < 0 {
		add("embedder.batch_size and embedder.cache_size must not be negative")
	}

	a := c.Assembly
	if a.SimilarityThreshold < -1 || a.SimilarityThreshold > 1 {
		add("assembly.similarity_threshold must be in [-1, 1], got %g", a.SimilarityThreshold)
	}
	if a.SimilarityTopK < 0 {
		add("assembly.similarity_top_k must not be negative")
	}
	if a.MaxIterations < 0 {
		add("assembly.max_iterations must not be negative")
	}

	if _, err := docpack.ParseCompression(c.Packer.Compression); err != nil {
		add("packer.compression: %v", err)
	}
	if err := c.LLM.Validate(); err != nil {
		add("%v", err)
	}
	if _, err := c.LogLevel(); err != nil {
		add("log.level: %v", err)
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.NewConfigError(
		"Invalid configuration",
		strings.Join(problems, "; "),
		"Fix the listed fields in "+DefaultFile+" or the environment",
		nil,
	)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return l, nil
}

// Compression parses Packer.Compression.
func (c *Config) Compression() docpack.Compression {
	comp, err := docpack.ParseCompression(c.Packer.Compression)
	if err != nil {
		return docpack.CompressionBalanced
	}
	return comp
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
