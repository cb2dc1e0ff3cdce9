// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package impact computes the transitive blast radius of changed files.
//
// The impact set is the seeds plus every file that transitively
// depends on any seed, found by breadth-first search over the graph's
// reverse edges. The closure is always complete: a partial impact set
// silently under-selects tests, so cancellation aborts the analysis
// rather than returning a truncated result.
package impact

import (
	"context"
	"fmt"
	"sort"

	"github.com/AleutianAI/tia/services/engine/graph"
)

// Result is the outcome of one impact analysis.
type Result struct {
	// Impacted is the full impact set: every seed plus all transitive
	// dependents, sorted.
	Impacted []string `json:"impacted"`

	// UnknownSeeds lists seeds that were not graph nodes — deleted
	// files, files outside the scan, files that failed to parse in a
	// previous life. They are conservatively kept in Impacted; their
	// dependents are simply unreachable.
	UnknownSeeds []string `json:"unknown_seeds,omitempty"`
}

// Contains reports whether path is in the impact set.
func (r *Result) Contains(path string) bool {
	i := sort.SearchStrings(r.Impacted, path)
	return i < len(r.Impacted) && r.Impacted[i] == path
}

// Analyzer computes impact sets over a frozen graph.
//
// # Thread Safety
//
// Safe for concurrent use once the graph is frozen.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates an Analyzer over g.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// Analyze computes the impact set for the given seed files.
//
// Inputs:
//
//	ctx   - Context for cancellation. Must not be nil.
//	seeds - Changed files, root-relative. Duplicates are collapsed.
//
// Outputs:
//
//	*Result - The impact set. Empty seeds yield an empty result.
//	error   - Non-nil only for nil or cancelled context.
func (a *Analyzer) Analyze(ctx context.Context, seeds []string) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}

	visited := make(map[string]bool, len(seeds))
	var unknown []string
	queue := make([]string, 0, len(seeds))

	for _, seed := range seeds {
		if visited[seed] {
			continue
		}
		visited[seed] = true
		if a.g.HasFile(seed) {
			queue = append(queue, seed)
		} else {
			unknown = append(unknown, seed)
		}
	}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("impact analysis canceled: %w", ctx.Err())
		default:
		}

		current := queue[0]
		queue = queue[1:]

		for dependent := range a.g.DependentSet(current) {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			queue = append(queue, dependent)
		}
	}

	result := &Result{
		Impacted: make([]string, 0, len(visited)),
	}
	for f := range visited {
		result.Impacted = append(result.Impacted, f)
	}
	sort.Strings(result.Impacted)
	sort.Strings(unknown)
	result.UnknownSeeds = unknown

	return result, nil
}
