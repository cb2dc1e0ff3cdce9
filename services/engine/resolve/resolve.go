// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve maps import references to project files.
//
// Resolution is the ecosystem-specific half of dependency extraction:
// the extractor produces language-level references (dotted Python
// modules, Go import paths) and a Resolver decides which files in the
// scanned set they name. References to anything outside the project —
// the standard library, installed third-party packages — resolve to
// nothing and are dropped; only intra-project edges enter the graph.
package resolve

import "sort"

// Ref is one import reference found in a source file.
type Ref struct {
	// Module is the dotted module path ("pkg.sub.mod") for Python or
	// the import path for Go. May be empty for bare relative imports
	// ("from . import x").
	Module string

	// Level is the relative-import level: 0 for absolute imports, 1
	// for "from .", 2 for "from ..", and so on. Always 0 for Go.
	Level int

	// FromFile is the root-relative path of the importing file.
	FromFile string
}

// Resolver maps references to the project files they name.
//
// # Thread Safety
//
// Implementations must be safe for concurrent Resolve calls; the
// extraction fan-out shares one Resolver across workers.
type Resolver interface {
	// Resolve returns the root-relative paths of project files the
	// reference names, sorted. An empty slice means the reference is
	// external or dangling and produces no edge.
	Resolve(ref Ref) []string
}

// =============================================================================
// Python
// =============================================================================

// PythonResolver resolves dotted-module references against the scanned
// file set using the import system's file layout rules.
type PythonResolver struct {
	files map[string]bool
}

// NewPython creates a resolver over the scanned file set. Keys are
// root-relative slash-separated paths.
func NewPython(files map[string]bool) *PythonResolver {
	return &PythonResolver{files: files}
}

// Resolve maps one reference to project files.
//
// Absolute imports try every prefix of the dotted path, longest first:
// for "a.b.c" the candidates are a/b/c.py, a/b/c/__init__.py, then
// a/b.py, a/b/__init__.py (plus the one-deeper submodule a/b/c.py when
// the prefix is a package), then a.py, a/__init__.py. Every candidate
// present in the project is returned: importing a.b.c genuinely
// executes both the package initializers and the module.
//
// Relative imports walk up from the importing file's directory by
// Level-1 parents, then resolve Module beneath that point. A bare
// relative import ("from . import x") names the current package's
// __init__.py.
func (r *PythonResolver) Resolve(ref Ref) []string {
	if ref.Level > 0 {
		return r.resolveRelative(ref)
	}
	return r.resolveAbsolute(ref)
}

func (r *PythonResolver) resolveAbsolute(ref Ref) []string {
	if ref.Module == "" {
		return nil
	}
	parts := splitDotted(ref.Module)

	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if r.files[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for i := len(parts); i >= 1; i-- {
		base := joinSlash(parts[:i])
		add(base + ".py")
		if r.files[base+"/__init__.py"] {
			add(base + "/__init__.py")
			if i < len(parts) {
				add(joinSlash(parts[:i+1]) + ".py")
			}
		}
	}

	sort.Strings(out)
	return out
}

func (r *PythonResolver) resolveRelative(ref Ref) []string {
	current := dirOf(ref.FromFile)
	for i := 0; i < ref.Level-1; i++ {
		current = parentOf(current)
	}

	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if r.files[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	if ref.Module != "" {
		target := joinRel(current, splitDotted(ref.Module))
		add(target + ".py")
		add(target + "/__init__.py")
	} else {
		add(joinRel(current, []string{"__init__.py"}))
	}

	sort.Strings(out)
	return out
}

// =============================================================================
// Path helpers
// =============================================================================
//
// These operate on root-relative slash paths where the root itself is
// the empty string, so path math never escapes the project.

func splitDotted(module string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(module); i++ {
		if i == len(module) || module[i] == '.' {
			parts = append(parts, module[start:i])
			start = i + 1
		}
	}
	return parts
}

func joinSlash(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}

// dirOf returns the directory of a relative slash path, "" at root.
func dirOf(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}

// parentOf walks one level up, clamping at the root.
func parentOf(dir string) string {
	if dir == "" {
		return ""
	}
	return dirOf(dir)
}

func joinRel(dir string, parts []string) string {
	rest := joinSlash(parts)
	if dir == "" {
		return rest
	}
	return dir + "/" + rest
}
