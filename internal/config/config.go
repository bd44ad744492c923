// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides loading and saving of analyst settings.
//
// Settings live in a TOML file, with environment variable overrides and
// validation that clamps out-of-range values instead of failing.
//
// Configuration file location:
//   - ~/.wcaglens/config.toml
//   - Built-in defaults when the file is absent
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/wcaglens/internal/util"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultOllamaURL is the standard local Ollama address.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is used until the user picks one from discovery.
	DefaultModel = "llama3.2"

	// DefaultWCAGVersion and DefaultWCAGLevel select the conformance
	// target the analysis prompt asks for.
	DefaultWCAGVersion = "2.2"
	DefaultWCAGLevel   = "AA"

	// DefaultLanguage selects the localized prompt and marker strings.
	DefaultLanguage = "tr"

	// DefaultTimeoutSecs is the base per-attempt chat timeout.
	DefaultTimeoutSecs = 120

	// Timeout bounds. Local models can legitimately take minutes on
	// weak hardware, but anything past ten minutes is a hang.
	MinTimeoutSecs = 30
	MaxTimeoutSecs = 600
)

var wcagVersions = []string{"2.0", "2.1", "2.2"}
var wcagLevels = []string{"A", "AA", "AAA"}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is one complete, validated view of the settings. Operations
// take a Snapshot at their start and never re-read mid-flight, so a
// concurrent settings change cannot produce a half-updated request.
type Snapshot struct {
	// OllamaURL is the base URL of the Ollama server.
	OllamaURL string `toml:"ollama_url"`

	// OllamaModel is the model used for analysis.
	OllamaModel string `toml:"ollama_model"`

	// WCAGVersion is one of "2.0", "2.1", "2.2".
	WCAGVersion string `toml:"wcag_version"`

	// WCAGLevel is one of "A", "AA", "AAA".
	WCAGLevel string `toml:"wcag_level"`

	// Language is the user's language code ("tr", "en").
	Language string `toml:"language"`

	// TimeoutSecs is the base per-attempt chat timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
}

// Default returns the built-in settings.
func Default() Snapshot {
	return Snapshot{
		OllamaURL:   DefaultOllamaURL,
		OllamaModel: DefaultModel,
		WCAGVersion: DefaultWCAGVersion,
		WCAGLevel:   DefaultWCAGLevel,
		Language:    DefaultLanguage,
		TimeoutSecs: DefaultTimeoutSecs,
	}
}

// Timeout returns the base per-attempt timeout as a duration.
func (s Snapshot) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// clamp fills empty fields with defaults and forces enumerated and
// bounded fields into their valid ranges.
func (s *Snapshot) clamp() {
	def := Default()
	if s.OllamaURL == "" {
		s.OllamaURL = def.OllamaURL
	}
	if s.OllamaModel == "" {
		s.OllamaModel = def.OllamaModel
	}
	if !contains(wcagVersions, s.WCAGVersion) {
		s.WCAGVersion = def.WCAGVersion
	}
	if !contains(wcagLevels, s.WCAGLevel) {
		s.WCAGLevel = def.WCAGLevel
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	if s.TimeoutSecs < MinTimeoutSecs {
		if s.TimeoutSecs == 0 {
			s.TimeoutSecs = def.TimeoutSecs
		} else {
			s.TimeoutSecs = MinTimeoutSecs
		}
	}
	if s.TimeoutSecs > MaxTimeoutSecs {
		s.TimeoutSecs = MaxTimeoutSecs
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Path returns the settings file location, ~/.wcaglens/config.toml.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".wcaglens", "config.toml"), nil
}

// Load reads the settings file at the default path. A missing file is
// not an error; defaults are returned.
func Load() (Snapshot, error) {
	path, err := Path()
	if err != nil {
		return Default(), err
	}
	return LoadFrom(path)
}

// LoadFrom reads the settings file at path, applies environment
// overrides and validates the result. A missing file yields defaults
// (plus overrides) with a nil error; a malformed file is an error.
func LoadFrom(path string) (Snapshot, error) {
	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return Default(), fmt.Errorf("failed to read config: %w", err)
	default:
		if err := toml.Unmarshal(data, &s); err != nil {
			return Default(), fmt.Errorf("failed to parse config: %w", err)
		}
	}

	s.applyEnv()
	s.clamp()
	return s, nil
}

// SaveTo writes the snapshot to path atomically.
func (s Snapshot) SaveTo(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}

// Save writes the snapshot to the default path.
func (s Snapshot) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return s.SaveTo(path)
}

// applyEnv overlays WCAGLENS_* environment variables onto the snapshot.
func (s *Snapshot) applyEnv() {
	if v := os.Getenv("WCAGLENS_OLLAMA_URL"); v != "" {
		s.OllamaURL = v
	}
	if v := os.Getenv("WCAGLENS_MODEL"); v != "" {
		s.OllamaModel = v
	}
	if v := os.Getenv("WCAGLENS_LANGUAGE"); v != "" {
		s.Language = v
	}
	if v := os.Getenv("WCAGLENS_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			s.TimeoutSecs = secs
		}
	}
}
