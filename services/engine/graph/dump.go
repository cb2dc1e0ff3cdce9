// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

// FileEntry is one file's adjacency in a Dump.
type FileEntry struct {
	Path         string   `json:"path"`
	Dependencies []string `json:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty"`
}

// Dump is a deterministic serialization of the whole graph: files
// sorted, each adjacency list sorted. Two builds over the same tree
// produce byte-identical dumps.
type Dump struct {
	Root      string      `json:"root"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
	Files     []FileEntry `json:"files"`
}

// Dump serializes the graph.
func (g *Graph) Dump() *Dump {
	files := g.Files()
	out := &Dump{
		Root:      g.root,
		NodeCount: len(files),
		EdgeCount: g.edgeCount,
		Files:     make([]FileEntry, 0, len(files)),
	}
	for _, f := range files {
		out.Files = append(out.Files, FileEntry{
			Path:         f,
			Dependencies: g.Dependencies(f),
			Dependents:   g.Dependents(f),
		})
	}
	return out
}

// Entry serializes a single file's adjacency. Returns ErrUnknownFile
// for paths that are not nodes.
func (g *Graph) Entry(path string) (*FileEntry, error) {
	if !g.HasFile(path) {
		return nil, ErrUnknownFile
	}
	return &FileEntry{
		Path:         path,
		Dependencies: g.Dependencies(path),
		Dependents:   g.Dependents(path),
	}, nil
}
