// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/pkg/ux"
	"github.com/AleutianAI/tia/services/engine/config"
	"github.com/AleutianAI/tia/services/engine/runner"
	"github.com/AleutianAI/tia/services/engine/selector"
)

// =============================================================================
// EXIT CODES
// =============================================================================

// Exit codes for scripting and CI integration.
const (
	ExitSuccess     = 0 // Selection computed; runner (if invoked) passed
	ExitTestsFailed = 1 // Runner reported failures or timed out
	ExitError       = 2 // Configuration, scan, git, or internal error
)

// Output modes for the --output flag.
const (
	outputAutoMode = "auto"
	outputJSONMode = "json"
	outputTextMode = "text"
)

// =============================================================================
// CONFIG AND LOGGING
// =============================================================================

// loadEngineConfig resolves the project root, loads tia.yaml from it
// (or the --config override), and applies global flag overrides.
func loadEngineConfig() (config.Config, error) {
	root := flagRoot
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return config.Config{}, fmt.Errorf("resolving project root: %w", err)
	}

	path := flagConfig
	if path == "" {
		path = filepath.Join(absRoot, config.DefaultFileName)
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return cfg, err
	}

	// The root flag wins over the config file; a relative config root
	// resolves against the resolved project root.
	if flagRoot != "" || cfg.Root == "." || cfg.Root == "" {
		cfg.Root = absRoot
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(absRoot, cfg.Root)
	}
	return cfg, nil
}

// newCLILogger builds the logger shared by all commands. Logs go to
// stderr so stdout stays machine-parseable; --quiet drops them.
func newCLILogger() *logging.Logger {
	return logging.New(logging.Config{
		Service: "tia",
		Quiet:   flagQuiet,
	})
}

// storePath resolves the run-history directory against the project
// root. Empty means persistence is disabled.
func storePath(cfg config.Config) string {
	dir := cfg.Server.StoreDir
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(cfg.Root, dir)
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// wantJSON reports whether results should print as JSON: forced by
// --output json, or chosen automatically when stdout is not a
// terminal.
func wantJSON() bool {
	switch flagOutput {
	case outputJSONMode:
		return true
	case outputTextMode:
		return false
	default:
		return ux.DetectMode() == ux.ModePlain
	}
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(ExitError)
	}
}

// outputError reports a command failure on the active output channel.
func outputError(msg string, err error) {
	if wantJSON() {
		result := map[string]interface{}{
			"api_version": selector.APIVersion,
			"success":     false,
			"error":       msg,
		}
		if err != nil {
			result["error"] = fmt.Sprintf("%s: %v", msg, err)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
		return
	}
	if err != nil {
		ux.Error(fmt.Sprintf("%s: %v", msg, err))
		return
	}
	ux.Error(msg)
}

// degradationCount sums the stats that mean "analysis saw less than
// the whole tree". Unresolved references and skipped dynamic imports
// are expected analysis limits, not degradation.
func degradationCount(report *selector.Report) int {
	return report.Stats.ParseFailures + report.Stats.SkippedDirs + report.Stats.UnknownSeeds
}

// renderReport prints the human-readable selection result.
func renderReport(report *selector.Report) {
	if report.SelectAll {
		ux.Warning(fmt.Sprintf("selecting all tests (%s)", report.SelectAllReason))
	}

	if len(report.AffectedTests) == 0 {
		ux.Info("no affected tests; nothing to run")
	} else {
		ux.Title("Affected tests")
		for _, t := range report.AffectedTests {
			ux.FileLine(t, ux.IconArrow, "")
		}
	}

	for _, w := range report.Warnings {
		ux.Warning(w)
	}

	ux.Summary(len(report.AffectedTests), report.Stats.FilesScanned, degradationCount(report))

	if report.Debug != nil {
		renderDebug(report.Debug)
	}
}

// renderDebug prints the per-seed analysis dump.
func renderDebug(dbg *selector.Debug) {
	ux.Title("Debug")
	for _, seed := range dbg.Seeds {
		ux.FileLine(seed.Path, ux.IconBullet, "seed")
		for _, d := range seed.DirectDependencies {
			ux.Muted(fmt.Sprintf("    depends on %s", d))
		}
		for _, d := range seed.DirectDependents {
			ux.Muted(fmt.Sprintf("    depended on by %s", d))
		}
		for _, t := range seed.CoveringTests {
			ux.Muted(fmt.Sprintf("    covered by %s", t))
		}
	}
	for _, d := range dbg.Degradations {
		ux.Warning(d)
	}
}

// =============================================================================
// RUNNER EXIT MAPPING
// =============================================================================

// runnerExit maps a runner outcome to the process exit code. The
// child's exit code is propagated untouched; a timeout has no child
// code and maps to ExitTestsFailed.
func runnerExit(result *runner.Result, err error) int {
	switch {
	case err != nil && errors.Is(err, runner.ErrRunTimeout):
		return ExitTestsFailed
	case err != nil:
		return ExitError
	case result == nil:
		return ExitError
	case result.Skipped:
		return ExitSuccess
	default:
		return result.ExitCode
	}
}
