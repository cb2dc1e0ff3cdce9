// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changes

import (
	"path"
	"sort"
)

// FilterResult is the outcome of narrowing raw changed paths to seeds.
type FilterResult struct {
	// Seeds are the changed source files, sorted and deduplicated.
	Seeds []string

	// TriggerAll is set when a changed path matched a trigger-all
	// pattern; dependency analysis cannot see through build and
	// environment files, so the only safe answer is everything.
	TriggerAll bool

	// TriggerPath and TriggerPattern identify the first match, for
	// the run report.
	TriggerPath    string
	TriggerPattern string
}

// Filter narrows raw changed paths to analyzable seeds and watches for
// trigger-all files.
type Filter struct {
	extensions map[string]bool
	triggerAll []string
}

// NewFilter creates a Filter.
//
// Inputs:
//
//	extensions - source extensions that become seeds (".py").
//	triggerAll - glob patterns matched against both the full relative
//	             path and the basename ("requirements*.txt",
//	             "conftest.py").
func NewFilter(extensions, triggerAll []string) *Filter {
	f := &Filter{
		extensions: make(map[string]bool, len(extensions)),
		triggerAll: triggerAll,
	}
	for _, e := range extensions {
		f.extensions[e] = true
	}
	return f
}

// Apply filters the changed paths.
func (f *Filter) Apply(changed []string) FilterResult {
	var result FilterResult
	seen := make(map[string]bool)

	for _, p := range changed {
		if !result.TriggerAll {
			if pattern, ok := f.matchTrigger(p); ok {
				result.TriggerAll = true
				result.TriggerPath = p
				result.TriggerPattern = pattern
			}
		}
		if f.extensions[path.Ext(p)] && !seen[p] {
			seen[p] = true
			result.Seeds = append(result.Seeds, p)
		}
	}

	sort.Strings(result.Seeds)
	return result
}

func (f *Filter) matchTrigger(p string) (string, bool) {
	base := path.Base(p)
	for _, pattern := range f.triggerAll {
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return pattern, true
		}
		if ok, err := path.Match(pattern, base); err == nil && ok {
			return pattern, true
		}
	}
	return "", false
}
