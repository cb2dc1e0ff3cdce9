// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package impact

import (
	"context"
	"reflect"
	"testing"

	"github.com/AleutianAI/tia/services/engine/graph"
)

// buildGraph creates a frozen graph from "importer -> imported" pairs.
func buildGraph(t *testing.T, edges [][2]string, extra ...string) *graph.Graph {
	t.Helper()
	g := graph.New("/proj")
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", e[0], e[1], err)
		}
	}
	for _, f := range extra {
		if err := g.AddFile(f); err != nil {
			t.Fatalf("AddFile(%s): %v", f, err)
		}
	}
	g.Freeze()
	return g
}

func TestAnalyze_TransitiveClosure(t *testing.T) {
	// b imports a, c imports b, test_c imports c.
	g := buildGraph(t, [][2]string{
		{"b.py", "a.py"},
		{"c.py", "b.py"},
		{"test_c.py", "c.py"},
	})

	result, err := NewAnalyzer(g).Analyze(context.Background(), []string{"a.py"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := []string{"a.py", "b.py", "c.py", "test_c.py"}
	if !reflect.DeepEqual(result.Impacted, want) {
		t.Errorf("Impacted = %v, want %v", result.Impacted, want)
	}
	if len(result.UnknownSeeds) != 0 {
		t.Errorf("UnknownSeeds = %v, want empty", result.UnknownSeeds)
	}
}

func TestAnalyze_MidChainSeed(t *testing.T) {
	// Changing b affects only its dependents, not its dependencies.
	g := buildGraph(t, [][2]string{
		{"b.py", "a.py"},
		{"c.py", "b.py"},
	})

	result, err := NewAnalyzer(g).Analyze(context.Background(), []string{"b.py"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := []string{"b.py", "c.py"}
	if !reflect.DeepEqual(result.Impacted, want) {
		t.Errorf("Impacted = %v, want %v", result.Impacted, want)
	}
}

func TestAnalyze_DiamondVisitedOnce(t *testing.T) {
	// b and c both import a; d imports both b and c.
	g := buildGraph(t, [][2]string{
		{"b.py", "a.py"},
		{"c.py", "a.py"},
		{"d.py", "b.py"},
		{"d.py", "c.py"},
	})

	result, err := NewAnalyzer(g).Analyze(context.Background(), []string{"a.py"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := []string{"a.py", "b.py", "c.py", "d.py"}
	if !reflect.DeepEqual(result.Impacted, want) {
		t.Errorf("Impacted = %v, want %v", result.Impacted, want)
	}
}

func TestAnalyze_CycleTerminates(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"a.py", "b.py"},
		{"b.py", "a.py"},
		{"c.py", "a.py"},
	})

	result, err := NewAnalyzer(g).Analyze(context.Background(), []string{"b.py"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := []string{"a.py", "b.py", "c.py"}
	if !reflect.DeepEqual(result.Impacted, want) {
		t.Errorf("Impacted = %v, want %v", result.Impacted, want)
	}
}

func TestAnalyze_MultipleSeeds(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"x2.py", "x1.py"},
		{"y2.py", "y1.py"},
	}, "z.py")

	result, err := NewAnalyzer(g).Analyze(context.Background(), []string{"x1.py", "y1.py", "x1.py"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := []string{"x1.py", "x2.py", "y1.py", "y2.py"}
	if !reflect.DeepEqual(result.Impacted, want) {
		t.Errorf("Impacted = %v, want %v", result.Impacted, want)
	}
}

func TestAnalyze_UnknownSeedKept(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"b.py", "a.py"},
	})

	result, err := NewAnalyzer(g).Analyze(context.Background(), []string{"deleted.py", "a.py"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := []string{"a.py", "b.py", "deleted.py"}
	if !reflect.DeepEqual(result.Impacted, want) {
		t.Errorf("Impacted = %v, want %v", result.Impacted, want)
	}
	if !reflect.DeepEqual(result.UnknownSeeds, []string{"deleted.py"}) {
		t.Errorf("UnknownSeeds = %v, want [deleted.py]", result.UnknownSeeds)
	}
}

func TestAnalyze_EmptySeeds(t *testing.T) {
	g := buildGraph(t, [][2]string{{"b.py", "a.py"}})

	result, err := NewAnalyzer(g).Analyze(context.Background(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.Impacted) != 0 {
		t.Errorf("Impacted = %v, want empty", result.Impacted)
	}
}

func TestAnalyze_IsolatedSeed(t *testing.T) {
	g := buildGraph(t, [][2]string{{"b.py", "a.py"}}, "lonely.py")

	result, err := NewAnalyzer(g).Analyze(context.Background(), []string{"lonely.py"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := []string{"lonely.py"}
	if !reflect.DeepEqual(result.Impacted, want) {
		t.Errorf("Impacted = %v, want %v", result.Impacted, want)
	}
	if len(result.UnknownSeeds) != 0 {
		t.Errorf("isolated but scanned file is not unknown: %v", result.UnknownSeeds)
	}
}

func TestAnalyze_NilContext(t *testing.T) {
	g := buildGraph(t, nil)
	//nolint:staticcheck // passing nil context is the case under test
	if _, err := NewAnalyzer(g).Analyze(nil, []string{"a.py"}); err == nil {
		t.Error("expected error for nil context")
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"b.py", "a.py"},
		{"c.py", "b.py"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewAnalyzer(g).Analyze(ctx, []string{"a.py"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestResult_Contains(t *testing.T) {
	result := &Result{Impacted: []string{"a.py", "b.py", "c.py"}}

	if !result.Contains("b.py") {
		t.Error("Contains(b.py) should be true")
	}
	if result.Contains("z.py") {
		t.Error("Contains(z.py) should be false")
	}
}
