// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the retrieval core's configuration from a YAML
// file overlaid with environment variables, using koanf's file.Provider
// and env.Provider layered in that order so env vars always win.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kadirpekel/ragcore/pkg/embedder"
	"github.com/kadirpekel/ragcore/pkg/generator"
	"github.com/kadirpekel/ragcore/pkg/ragcore"
	"github.com/kadirpekel/ragcore/pkg/semantic"
	"github.com/kadirpekel/ragcore/pkg/vector"
)

// RedactConfig holds the PII Redactor's "enabled" setting. The value is
// loaded but not read anywhere: the Orchestrator always masks queries.
type RedactConfig struct {
	Enabled bool `yaml:"enabled"`
}

func (c *RedactConfig) SetDefaults() {
	// No default is applied: Enabled stays false unless set, and
	// Config.SetDefaults does not call this method.
}

// ServerConfig configures the chi HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// Config is the complete, read-only-after-load configuration for the
// retrieval core. Nothing mutates it after Load returns, so it can be
// shared across goroutines without a lock.
type Config struct {
	Hybrid   ragcore.HybridConfig      `yaml:"hybrid"`
	Chunk    ragcore.ChunkConfig       `yaml:"chunk"`
	Vector   semantic.VectorConfig     `yaml:"vector"`
	Provider vector.ProviderConfig     `yaml:"provider"`
	Redact   RedactConfig              `yaml:"redact"`
	Server   ServerConfig              `yaml:"server"`
	Ingestor ragcore.IngestorConfig    `yaml:"ingestor"`
	Retry    ragcore.RetryConfig       `yaml:"retry"`
	LexicalBackend string              `yaml:"lexical_backend"` // "bleve" | "postgres"
	BlevePath      string              `yaml:"bleve_path"`
	PostgresDSN    string              `yaml:"postgres_dsn"`
	LogLevel       string              `yaml:"log_level"`

	Embedder  embedder.OpenAIConfig `yaml:"embedder"`
	Generator generator.Config      `yaml:"generator"`
	Judge     generator.Config      `yaml:"judge"` // defaults to Generator's model if unset
}

// SetDefaults applies every sub-config's defaults.
func (c *Config) SetDefaults() {
	c.Hybrid.SetDefaults()
	c.Chunk.SetDefaults()
	c.Vector.SetDefaults()
	c.Provider.SetDefaults()
	c.Server.SetDefaults()
	c.Ingestor.SetDefaults()
	c.Retry.SetDefaults()
	if c.LexicalBackend == "" {
		c.LexicalBackend = "bleve"
	}
	if c.BlevePath == "" {
		c.BlevePath = "./data/lexical.bleve"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Embedder.SetDefaults()
	c.Generator.SetDefaults()
	if c.Judge.Model == "" {
		c.Judge = c.Generator
	}
	c.Judge.SetDefaults()
}

// Validate runs every sub-config's validation.
func (c *Config) Validate() error {
	if err := c.Hybrid.Validate(); err != nil {
		return fmt.Errorf("hybrid: %w", err)
	}
	if err := c.Chunk.Validate(); err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	switch c.LexicalBackend {
	case "bleve", "postgres":
	default:
		return fmt.Errorf("lexical_backend must be bleve or postgres, got %q", c.LexicalBackend)
	}
	if c.LexicalBackend == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required when lexical_backend is postgres")
	}
	return nil
}

// Load reads path (YAML) into a Config, overlays matching RAGCORE_*
// environment variables, loads a local .env file if present, applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional, local development only

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("RAGCORE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "RAGCORE_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overlay: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// An explicit hybrid.alpha of 0 (pure lexical) is kept; only an absent
	// key takes HybridConfig's default.
	explicitZeroAlpha := k.Exists("hybrid.alpha") && cfg.Hybrid.Alpha == 0
	cfg.SetDefaults()
	if explicitZeroAlpha {
		cfg.Hybrid.Alpha = 0
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
