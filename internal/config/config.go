// Package config loads the chatwatch configuration file. Values come from
// YAML layered over defaults and are validated against an embedded CUE
// schema before use.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Config holds every tunable of the pipeline. JSON tags drive the CUE
// encoding; YAML tags drive file parsing. The two must stay aligned with
// schema.cue.
type Config struct {
	StorePath      string `json:"store_path" yaml:"store_path"`
	CursorPath     string `json:"cursor_path" yaml:"cursor_path"`
	SettleMS       int    `json:"settle_ms" yaml:"settle_ms"`
	ChunkLimit     int    `json:"chunk_limit" yaml:"chunk_limit"`
	MaxLength      int    `json:"max_length" yaml:"max_length"`
	RateIntervalMS int    `json:"rate_interval_ms" yaml:"rate_interval_ms"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		StorePath:      filepath.Join(home, "Library", "Messages", "chat.db"),
		CursorPath:     filepath.Join(home, ".config", "chatwatch", "cursor.yaml"),
		SettleMS:       500,
		ChunkLimit:     2000,
		MaxLength:      10000,
		RateIntervalMS: 1000,
	}
}

// Load reads path, layers it over the defaults, and validates the result.
// A missing file is an error; use Default directly when no file exists.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate unifies the configuration with the embedded CUE schema. All
// constraint violations are collected into one error.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("config: schema missing #Config: %w", err)
	}

	unified := def.Unify(ctx.Encode(c))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// Settle returns the debounce interval as a duration.
func (c Config) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

// RateInterval returns the minimum send spacing as a duration.
func (c Config) RateInterval() time.Duration {
	return time.Duration(c.RateIntervalMS) * time.Millisecond
}
