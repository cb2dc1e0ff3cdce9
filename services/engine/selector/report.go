// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package selector

// APIVersion identifies the report schema. Bump on breaking changes.
const APIVersion = "tia/v1"

// Stats summarizes one selection run. Degradation counters are the
// honesty ledger: a run that skipped directories or failed parses
// still selects, but the report says how much it could not see.
type Stats struct {
	FilesScanned   int   `json:"files_scanned"`
	SkippedDirs    int   `json:"skipped_dirs"`
	Nodes          int   `json:"nodes"`
	Edges          int   `json:"edges"`
	ParseFailures  int   `json:"parse_failures"`
	DynamicSkipped int   `json:"dynamic_imports_skipped"`
	UnresolvedRefs int   `json:"unresolved_refs"`
	UnknownSeeds   int   `json:"unknown_seeds"`
	DurationMs     int64 `json:"duration_ms"`
}

// SeedDetail is the per-seed debug breakdown.
type SeedDetail struct {
	Path               string   `json:"path"`
	DirectDependencies []string `json:"direct_dependencies"`
	DirectDependents   []string `json:"direct_dependents"`
	CoveringTests      []string `json:"covering_tests"`
}

// Debug carries the deterministic analysis dump, attached to the
// report only when debug mode is enabled in the configuration.
type Debug struct {
	Seeds        []SeedDetail `json:"seeds"`
	Degradations []string     `json:"degradations,omitempty"`
}

// Report is the run envelope every mode emits: CLI select, watch
// passes, and the HTTP API all produce this shape.
type Report struct {
	APIVersion     string   `json:"api_version"`
	RunID          string   `json:"run_id"`
	Root           string   `json:"root"`
	StartedAtMilli int64    `json:"started_at_milli"`
	Seeds          []string `json:"seeds"`
	AffectedTests  []string `json:"affected_tests"`

	// SelectAll marks runs where analysis was bypassed and every test
	// selected: explicit --all, or a trigger-all file changed.
	SelectAll       bool   `json:"select_all"`
	SelectAllReason string `json:"select_all_reason,omitempty"`

	Stats    Stats    `json:"stats"`
	Warnings []string `json:"warnings,omitempty"`
	Debug    *Debug   `json:"debug,omitempty"`
}
