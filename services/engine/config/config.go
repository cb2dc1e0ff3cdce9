// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config defines the tia configuration schema and loader.
//
// Configuration is an explicit value handed to the engine at
// construction time. Engine packages never read process environment
// variables; everything that changes analysis behavior — including the
// debug dump toggle — lives in this struct so runs are reproducible
// and testable without environment manipulation.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the project root.
const DefaultFileName = "tia.yaml"

// Language selects the source ecosystem to analyze.
const (
	LanguagePython = "python"
	LanguageGo     = "go"
)

// Helper policies for test files impacted only as dependencies of
// other tests (shared fixtures, test utility modules).
const (
	// HelperAlwaysRun keeps impacted helper test files in the selection.
	HelperAlwaysRun = "always-run"

	// HelperDependencyOnly drops test files that appear in the
	// selection purely because selected tests depend on them.
	HelperDependencyOnly = "dependency-only"
)

// Config is the complete engine configuration.
//
// The zero value is not usable; start from Default() and override.
type Config struct {
	// Root is the project root to analyze. Relative paths are resolved
	// against the working directory by the caller.
	Root string `yaml:"root"`

	// Language is the source ecosystem: "python" (default) or "go".
	Language string `yaml:"language"`

	// Scan controls source discovery.
	Scan ScanConfig `yaml:"scan"`

	// Tests controls test classification and selection policy.
	Tests TestConfig `yaml:"tests"`

	// Changes controls seed-set discovery.
	Changes ChangeConfig `yaml:"changes"`

	// Runner configures the external test runner invocation.
	Runner RunnerConfig `yaml:"runner"`

	// Workers bounds the parallel extraction fan-out.
	// Default: GOMAXPROCS.
	Workers int `yaml:"workers"`

	// Debug enables the deterministic analysis dump on the run report:
	// per-seed direct dependencies and dependents, test coverage, and
	// every degradation the run accumulated.
	Debug bool `yaml:"debug"`

	// Server configures serve mode.
	Server ServerConfig `yaml:"server"`
}

// ScanConfig controls the source scanner.
type ScanConfig struct {
	// ExcludeDirs are path segments pruned during the walk. A directory
	// whose name equals any entry is skipped recursively.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Extensions are the source file extensions to collect.
	Extensions []string `yaml:"extensions"`

	// FollowSymlinks enables descending into symlinked directories.
	// Off by default; symlink cycles are the caller's problem when on.
	FollowSymlinks bool `yaml:"follow_symlinks"`
}

// TestConfig controls test classification.
type TestConfig struct {
	// FilePrefix marks a test by basename prefix (default "test_").
	FilePrefix string `yaml:"file_prefix"`

	// FileSuffix marks a test by basename suffix (default "_test.py").
	FileSuffix string `yaml:"file_suffix"`

	// DirNames mark a test by containment in a directory with one of
	// these names (default "tests", "test").
	DirNames []string `yaml:"dir_names"`

	// HelperPolicy is "always-run" (default) or "dependency-only".
	HelperPolicy string `yaml:"helper_policy"`
}

// ChangeConfig controls seed-set discovery.
type ChangeConfig struct {
	// GitBase is the diff base ref (default "origin/main").
	GitBase string `yaml:"git_base"`

	// TriggerAll lists glob patterns (matched against the relative
	// path and the basename) that force select-all when any seed
	// matches — build configuration, dependency manifests, shared
	// fixtures.
	TriggerAll []string `yaml:"trigger_all"`
}

// RunnerConfig configures the external test runner.
type RunnerConfig struct {
	// Command is the runner argv prefix; selected test paths are
	// appended. Default: python -m pytest -v --tb=short.
	Command []string `yaml:"command"`

	// TimeoutSeconds bounds a runner invocation. Default 600.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	// Addr is the listen address (default ":8775").
	Addr string `yaml:"addr"`

	// StoreDir is the run-history database directory. Empty disables
	// persistence; reports are still returned to callers.
	StoreDir string `yaml:"store_dir"`

	// StoreLimit caps how many past runs List returns by default.
	StoreLimit int `yaml:"store_limit"`
}

// Default returns the baseline configuration for a Python project.
func Default() Config {
	return Config{
		Root:     ".",
		Language: LanguagePython,
		Scan: ScanConfig{
			ExcludeDirs: []string{"venv", ".venv", "build", "dist", ".git", "__pycache__", "node_modules"},
			Extensions:  []string{".py"},
		},
		Tests: TestConfig{
			FilePrefix:   "test_",
			FileSuffix:   "_test.py",
			DirNames:     []string{"tests", "test"},
			HelperPolicy: HelperAlwaysRun,
		},
		Changes: ChangeConfig{
			GitBase: "origin/main",
			TriggerAll: []string{
				"requirements*.txt",
				"setup.py",
				"setup.cfg",
				"pyproject.toml",
				"conftest.py",
			},
		},
		Runner: RunnerConfig{
			Command:        []string{"python", "-m", "pytest", "-v", "--tb=short"},
			TimeoutSeconds: 600,
		},
		Workers: runtime.GOMAXPROCS(0),
		Server: ServerConfig{
			Addr:       ":8775",
			StoreLimit: 50,
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns defaults.
// A missing file is not an error; a malformed one is.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	switch c.Language {
	case LanguagePython, LanguageGo:
	case "":
		return fmt.Errorf("%w: language is empty", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown language %q", ErrInvalidConfig, c.Language)
	}

	if len(c.Scan.Extensions) == 0 {
		return fmt.Errorf("%w: scan.extensions is empty", ErrInvalidConfig)
	}

	switch c.Tests.HelperPolicy {
	case HelperAlwaysRun, HelperDependencyOnly:
	default:
		return fmt.Errorf("%w: unknown helper_policy %q", ErrInvalidConfig, c.Tests.HelperPolicy)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	if c.Runner.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: runner.timeout_seconds must be >= 0", ErrInvalidConfig)
	}
	return nil
}
