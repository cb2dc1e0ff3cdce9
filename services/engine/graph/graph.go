// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph holds the file-level dependency graph.
//
// Nodes are root-relative file paths; a directed edge A -> B means "A
// imports B". The graph maintains forward and reverse adjacency
// together so that dependents lookups never fall back to scanning:
// every node is present in both directions, with an empty set when it
// has no neighbors.
package graph

import (
	"fmt"
	"sort"
	"time"
)

// State represents the lifecycle state of the graph.
type State int

const (
	// StateBuilding indicates the graph is accepting AddFile/AddEdge.
	StateBuilding State = iota

	// StateReadOnly indicates the graph is frozen.
	StateReadOnly
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// Graph is the project dependency graph.
//
// # Thread Safety
//
// Not safe for concurrent use while building. Single-writer during
// build, then Freeze(); after Freeze() returns, reads from any number
// of goroutines are safe and writes are rejected.
//
// Lifecycle:
//
//  1. Create with New(root)
//  2. Populate with AddFile() and AddEdge()
//  3. Freeze()
//  4. Query with Dependencies(), Dependents(), Dump()
type Graph struct {
	root    string
	forward map[string]map[string]bool
	reverse map[string]map[string]bool

	edgeCount int
	state     State

	// BuiltAtMilli is set when Freeze() is called, zero before.
	BuiltAtMilli int64
}

// New creates an empty graph for the project at root.
func New(root string) *Graph {
	return &Graph{
		root:    root,
		forward: make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
		state:   StateBuilding,
	}
}

// Root returns the project root the graph was built for.
func (g *Graph) Root() string {
	return g.root
}

// State returns the current lifecycle state.
func (g *Graph) State() State {
	return g.state
}

// IsFrozen returns true once Freeze() has been called.
func (g *Graph) IsFrozen() bool {
	return g.state == StateReadOnly
}

// Freeze transitions the graph to read-only. Irreversible.
func (g *Graph) Freeze() {
	g.state = StateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// NodeCount returns the number of files in the graph.
func (g *Graph) NodeCount() int {
	return len(g.forward)
}

// EdgeCount returns the number of distinct edges in the graph.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// HasFile reports whether path is a node.
func (g *Graph) HasFile(path string) bool {
	_, ok := g.forward[path]
	return ok
}

// AddFile registers path as a node with no edges yet. Adding a file
// twice is a no-op. Every scanned file is added up front so isolated
// files still answer dependency queries with empty sets.
func (g *Graph) AddFile(path string) error {
	if g.state == StateReadOnly {
		return ErrGraphFrozen
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidFile)
	}
	g.ensure(path)
	return nil
}

// AddEdge records "from imports to" in both directions.
//
// Self-edges are dropped: a file importing itself (package
// initializers re-exporting their own members) must not create a
// cycle of one. Duplicate edges collapse; the graph answers "does A
// depend on B", not "how many times".
func (g *Graph) AddEdge(from, to string) error {
	if g.state == StateReadOnly {
		return ErrGraphFrozen
	}
	if from == "" || to == "" {
		return fmt.Errorf("%w: empty endpoint", ErrInvalidFile)
	}
	if from == to {
		return nil
	}

	g.ensure(from)
	g.ensure(to)

	if g.forward[from][to] {
		return nil
	}
	g.forward[from][to] = true
	g.reverse[to][from] = true
	g.edgeCount++
	return nil
}

func (g *Graph) ensure(path string) {
	if _, ok := g.forward[path]; !ok {
		g.forward[path] = make(map[string]bool)
	}
	if _, ok := g.reverse[path]; !ok {
		g.reverse[path] = make(map[string]bool)
	}
}

// Dependencies returns the files path directly imports, sorted.
// Unknown paths return nil.
func (g *Graph) Dependencies(path string) []string {
	return sortedKeys(g.forward[path])
}

// Dependents returns the files that directly import path, sorted.
// Unknown paths return nil.
func (g *Graph) Dependents(path string) []string {
	return sortedKeys(g.reverse[path])
}

// DependencySet returns the direct forward adjacency of path as a set.
// The returned map is live graph state; callers must not mutate it.
func (g *Graph) DependencySet(path string) map[string]bool {
	return g.forward[path]
}

// DependentSet returns the direct reverse adjacency of path as a set.
// The returned map is live graph state; callers must not mutate it.
func (g *Graph) DependentSet(path string) map[string]bool {
	return g.reverse[path]
}

// Files returns every node, sorted.
func (g *Graph) Files() []string {
	return sortedKeys(g.forward)
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
