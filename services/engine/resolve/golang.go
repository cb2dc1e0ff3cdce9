// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// GoResolver resolves Go import paths against the scanned file set.
//
// An import path within the analyzed module maps to the package
// directory it names; the resolution set is every .go file in that
// directory, since a change to any of them changes the package.
// Imports outside the module path resolve to nothing.
type GoResolver struct {
	modulePath string
	byDir      map[string][]string
}

// NewGo creates a resolver for the module at modulePath over the
// scanned file set.
func NewGo(modulePath string, files map[string]bool) *GoResolver {
	byDir := make(map[string][]string)
	for f := range files {
		if !strings.HasSuffix(f, ".go") {
			continue
		}
		d := dirOf(f)
		byDir[d] = append(byDir[d], f)
	}
	for d := range byDir {
		sort.Strings(byDir[d])
	}
	return &GoResolver{modulePath: modulePath, byDir: byDir}
}

// ModulePathFromDir reads root/go.mod and returns the module path.
func ModulePathFromDir(root string) (string, error) {
	gomod := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(gomod)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", gomod, err)
	}
	mp := modfile.ModulePath(data)
	if mp == "" {
		return "", fmt.Errorf("%s: no module path", gomod)
	}
	return mp, nil
}

// Resolve maps a Go import path to the files of the package it names.
func (r *GoResolver) Resolve(ref Ref) []string {
	ip := ref.Module
	var dir string
	switch {
	case ip == r.modulePath:
		dir = ""
	case strings.HasPrefix(ip, r.modulePath+"/"):
		dir = ip[len(r.modulePath)+1:]
	default:
		return nil // external import
	}

	files := r.byDir[dir]
	if len(files) == 0 {
		return nil
	}
	out := make([]string, len(files))
	copy(out, files)
	return out
}
