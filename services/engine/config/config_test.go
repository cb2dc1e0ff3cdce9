// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Language != LanguagePython {
		t.Errorf("Language = %q, want %q", cfg.Language, LanguagePython)
	}
	if cfg.Tests.HelperPolicy != HelperAlwaysRun {
		t.Errorf("HelperPolicy = %q, want %q", cfg.Tests.HelperPolicy, HelperAlwaysRun)
	}
	if cfg.Changes.GitBase != "origin/main" {
		t.Errorf("GitBase = %q, want origin/main", cfg.Changes.GitBase)
	}
	if cfg.Debug {
		t.Error("Debug should default to false")
	}
	if cfg.Workers <= 0 {
		t.Errorf("Workers = %d, want > 0", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tia.yaml")
	content := `
language: python
scan:
  exclude_dirs: ["venv", ".git"]
  extensions: [".py"]
tests:
  helper_policy: dependency-only
changes:
  git_base: origin/develop
debug: true
workers: 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Tests.HelperPolicy != HelperDependencyOnly {
		t.Errorf("HelperPolicy = %q, want dependency-only", cfg.Tests.HelperPolicy)
	}
	if cfg.Changes.GitBase != "origin/develop" {
		t.Errorf("GitBase = %q, want origin/develop", cfg.Changes.GitBase)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if len(cfg.Scan.ExcludeDirs) != 2 {
		t.Errorf("ExcludeDirs = %v, want 2 entries", cfg.Scan.ExcludeDirs)
	}

	// Untouched sections keep their defaults.
	if cfg.Runner.TimeoutSeconds != 600 {
		t.Errorf("TimeoutSeconds = %d, want default 600", cfg.Runner.TimeoutSeconds)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tia.yaml")
	if err := os.WriteFile(path, []byte("language: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "tia.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if cfg.Language != LanguagePython {
		t.Errorf("expected defaults, got language %q", cfg.Language)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"go language", func(c *Config) { c.Language = LanguageGo }, false},
		{"empty language", func(c *Config) { c.Language = "" }, true},
		{"unknown language", func(c *Config) { c.Language = "rust" }, true},
		{"no extensions", func(c *Config) { c.Scan.Extensions = nil }, true},
		{"bad helper policy", func(c *Config) { c.Tests.HelperPolicy = "sometimes" }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"negative timeout", func(c *Config) { c.Runner.TimeoutSeconds = -5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error should wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}
