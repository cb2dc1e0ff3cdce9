// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package testmap classifies test files and selects the tests affected
// by an impact set.
package testmap

import (
	"sort"
	"strings"

	"github.com/AleutianAI/tia/services/engine/graph"
	"github.com/AleutianAI/tia/services/engine/impact"
)

// Helper policies for test files that other tests depend on.
const (
	// PolicyAlwaysRun keeps every affected test file in the selection.
	PolicyAlwaysRun = "always-run"

	// PolicyDependencyOnly drops non-seed test files that another
	// selected file imports: those are shared fixtures or base
	// classes acting as libraries, and their importers already run.
	PolicyDependencyOnly = "dependency-only"
)

// =============================================================================
// Classification
// =============================================================================

// Classifier decides whether a path is a test file.
//
// Classification is a pure function of the path: basename prefix,
// basename suffix, or containment in a directory named for tests.
// Segment matching, not substring — "contest_data.py" is not a test,
// and neither is "tests_backup_notes/readme.py".
type Classifier struct {
	prefix   string
	suffix   string
	dirNames map[string]bool
}

// NewClassifier creates a Classifier. Empty prefix or suffix disables
// that rule.
func NewClassifier(prefix, suffix string, dirNames []string) *Classifier {
	c := &Classifier{
		prefix:   prefix,
		suffix:   suffix,
		dirNames: make(map[string]bool, len(dirNames)),
	}
	for _, d := range dirNames {
		c.dirNames[d] = true
	}
	return c
}

// IsTest reports whether path is a test file.
func (c *Classifier) IsTest(path string) bool {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
		for _, seg := range strings.Split(path[:i], "/") {
			if c.dirNames[seg] {
				return true
			}
		}
	}
	if c.prefix != "" && strings.HasPrefix(base, c.prefix) {
		return true
	}
	if c.suffix != "" && strings.HasSuffix(base, c.suffix) {
		return true
	}
	return false
}

// =============================================================================
// Selection
// =============================================================================

// Mapper selects affected tests over a frozen graph.
//
// # Thread Safety
//
// Safe for concurrent use once the graph is frozen.
type Mapper struct {
	g          *graph.Graph
	classifier *Classifier
	policy     string
}

// NewMapper creates a Mapper. Unknown policies fall back to
// PolicyAlwaysRun.
func NewMapper(g *graph.Graph, classifier *Classifier, policy string) *Mapper {
	if policy != PolicyDependencyOnly {
		policy = PolicyAlwaysRun
	}
	return &Mapper{g: g, classifier: classifier, policy: policy}
}

// Classifier returns the mapper's test classifier.
func (m *Mapper) Classifier() *Classifier {
	return m.classifier
}

// AffectedTests selects the tests to run for an impact set.
//
// The selection is the union of two sources: test files inside the
// impact set, and test files whose direct dependencies intersect the
// impact set. The second source is redundant while the closure is
// total, and load-bearing the day it is not.
//
// seeds are the original changed files; the helper policy needs them
// to tell directly-changed test files from swept-in ones. The result
// is sorted. Empty is a valid outcome: changes with no test coverage
// select nothing, and surfacing that is the caller's job.
func (m *Mapper) AffectedTests(imp *impact.Result, seeds []string) []string {
	selected := make(map[string]bool)

	for _, f := range imp.Impacted {
		if m.classifier.IsTest(f) {
			selected[f] = true
		}
	}

	for _, f := range m.g.Files() {
		if selected[f] || !m.classifier.IsTest(f) {
			continue
		}
		for dep := range m.g.DependencySet(f) {
			if imp.Contains(dep) {
				selected[f] = true
				break
			}
		}
	}

	if m.policy == PolicyDependencyOnly {
		m.dropHelpers(selected, seeds)
	}

	out := make([]string, 0, len(selected))
	for f := range selected {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// dropHelpers removes non-seed test files that another selected file
// imports.
func (m *Mapper) dropHelpers(selected map[string]bool, seeds []string) {
	seedSet := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		seedSet[s] = true
	}

	var helpers []string
	for f := range selected {
		if seedSet[f] {
			continue
		}
		for dependent := range m.g.DependentSet(f) {
			if selected[dependent] && dependent != f {
				helpers = append(helpers, f)
				break
			}
		}
	}
	for _, h := range helpers {
		delete(selected, h)
	}
}

// =============================================================================
// Coverage
// =============================================================================

// Coverage maps each requested module to the test files that
// transitively depend on it, every list sorted. Modules with no
// covering tests map to an empty list — that absence is the signal
// the debug output exists to surface.
//
// The walk is forward from each test file, so cost scales with the
// number of tests; callers should request it only when reporting.
func (m *Mapper) Coverage(modules []string) map[string][]string {
	wanted := make(map[string]bool, len(modules))
	out := make(map[string][]string, len(modules))
	for _, mod := range modules {
		wanted[mod] = true
		out[mod] = []string{}
	}

	for _, f := range m.g.Files() {
		if !m.classifier.IsTest(f) {
			continue
		}
		for _, dep := range m.forwardClosure(f) {
			if wanted[dep] && !m.classifier.IsTest(dep) {
				out[dep] = append(out[dep], f)
			}
		}
	}

	for mod := range out {
		sort.Strings(out[mod])
	}
	return out
}

// forwardClosure returns every file reachable from start along forward
// edges, excluding start itself.
func (m *Mapper) forwardClosure(start string) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var out []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for dep := range m.g.DependencySet(current) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}
