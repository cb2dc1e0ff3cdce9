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

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/services/engine/config"
)

// writeTree materializes files (relative slash paths to contents) under
// a fresh temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

// pythonTree is a small project with one transitive chain
// (models <- service <- test_service) and one independent pair
// (util <- test_util).
func pythonTree() map[string]string {
	return map[string]string{
		"app/__init__.py":       "",
		"app/models.py":         "class User:\n    pass\n",
		"app/service.py":        "from app.models import User\n\n\ndef handler():\n    return User()\n",
		"app/util.py":           "def helper():\n    return 1\n",
		"app/lonely.py":         "X = 1\n",
		"tests/__init__.py":     "",
		"tests/test_service.py": "from app.service import handler\n\n\ndef test_handler():\n    assert handler() is not None\n",
		"tests/test_util.py":    "from app.util import helper\n\n\ndef test_helper():\n    assert helper() == 1\n",
	}
}

func newSelector(t *testing.T, cfg config.Config) *Selector {
	t.Helper()
	log := logging.New(logging.Config{Quiet: true})
	s, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func pythonConfig(root string) config.Config {
	cfg := config.Default()
	cfg.Root = root
	return cfg
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Language = "rust"
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestSelect_TransitiveChain(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	report, err := s.Select(context.Background(), Request{Seeds: []string{"app/models.py"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	want := []string{"tests/test_service.py"}
	if !reflect.DeepEqual(report.AffectedTests, want) {
		t.Errorf("affected = %v, want %v", report.AffectedTests, want)
	}
	if report.SelectAll {
		t.Error("SelectAll should be false for a normal run")
	}
	if report.APIVersion != APIVersion {
		t.Errorf("api version = %q, want %q", report.APIVersion, APIVersion)
	}
	if report.RunID == "" {
		t.Error("run ID should be populated")
	}
	if report.Stats.FilesScanned != 8 {
		t.Errorf("files scanned = %d, want 8", report.Stats.FilesScanned)
	}
	if report.Stats.ParseFailures != 0 {
		t.Errorf("parse failures = %d, want 0", report.Stats.ParseFailures)
	}
}

func TestSelect_IndependentChange(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	report, err := s.Select(context.Background(), Request{Seeds: []string{"app/util.py"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	want := []string{"tests/test_util.py"}
	if !reflect.DeepEqual(report.AffectedTests, want) {
		t.Errorf("affected = %v, want %v", report.AffectedTests, want)
	}
}

func TestSelect_IsolatedChange(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	report, err := s.Select(context.Background(), Request{Seeds: []string{"app/lonely.py"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if len(report.AffectedTests) != 0 {
		t.Errorf("affected = %v, want empty", report.AffectedTests)
	}
	if report.Stats.UnknownSeeds != 0 {
		t.Errorf("unknown seeds = %d, want 0", report.Stats.UnknownSeeds)
	}
}

func TestSelect_SeedsDeduplicatedAndSorted(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	req := Request{Seeds: []string{"app/util.py", "app/models.py", "app/models.py", ""}}
	report, err := s.Select(context.Background(), req)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	wantSeeds := []string{"app/models.py", "app/util.py"}
	if !reflect.DeepEqual(report.Seeds, wantSeeds) {
		t.Errorf("seeds = %v, want %v", report.Seeds, wantSeeds)
	}
	wantTests := []string{"tests/test_service.py", "tests/test_util.py"}
	if !reflect.DeepEqual(report.AffectedTests, wantTests) {
		t.Errorf("affected = %v, want %v", report.AffectedTests, wantTests)
	}
}

func TestSelect_ForceAll(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	report, err := s.Select(context.Background(), Request{ForceAll: true})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if !report.SelectAll {
		t.Fatal("SelectAll should be true")
	}
	if report.SelectAllReason != "requested" {
		t.Errorf("reason = %q, want %q", report.SelectAllReason, "requested")
	}
	want := []string{"tests/__init__.py", "tests/test_service.py", "tests/test_util.py"}
	if !reflect.DeepEqual(report.AffectedTests, want) {
		t.Errorf("affected = %v, want %v", report.AffectedTests, want)
	}
}

func TestSelect_ForceAllKeepsReason(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	req := Request{ForceAll: true, ForceAllReason: "trigger-all: requirements.txt"}
	report, err := s.Select(context.Background(), req)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if report.SelectAllReason != req.ForceAllReason {
		t.Errorf("reason = %q, want %q", report.SelectAllReason, req.ForceAllReason)
	}
}

func TestSelect_NoSeedsReturnsEarly(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	report, err := s.Select(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if len(report.AffectedTests) != 0 {
		t.Errorf("affected = %v, want empty", report.AffectedTests)
	}
	if report.Stats.FilesScanned != 0 {
		t.Error("tree should not be scanned when there is nothing to analyze")
	}
	if len(report.Warnings) == 0 || !strings.Contains(report.Warnings[0], "no changed files") {
		t.Errorf("warnings = %v, want a no-changed-files note", report.Warnings)
	}
}

func TestSelect_UnknownSeedWarns(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	report, err := s.Select(context.Background(), Request{Seeds: []string{"app/ghost.py"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if report.Stats.UnknownSeeds != 1 {
		t.Errorf("unknown seeds = %d, want 1", report.Stats.UnknownSeeds)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "app/ghost.py") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one naming app/ghost.py", report.Warnings)
	}
	if len(report.AffectedTests) != 0 {
		t.Errorf("affected = %v, want empty", report.AffectedTests)
	}
}

func TestSelect_ParseFailureDegrades(t *testing.T) {
	files := pythonTree()
	files["app/broken.py"] = "def broken(:\n    pass\n"
	root := writeTree(t, files)

	cfg := pythonConfig(root)
	cfg.Debug = true
	s := newSelector(t, cfg)

	report, err := s.Select(context.Background(), Request{Seeds: []string{"app/models.py"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if report.Stats.ParseFailures != 1 {
		t.Errorf("parse failures = %d, want 1", report.Stats.ParseFailures)
	}
	want := []string{"tests/test_service.py"}
	if !reflect.DeepEqual(report.AffectedTests, want) {
		t.Errorf("affected = %v, want %v", report.AffectedTests, want)
	}
	if report.Debug == nil {
		t.Fatal("debug dump should be present")
	}
	found := false
	for _, d := range report.Debug.Degradations {
		if strings.Contains(d, "app/broken.py") {
			found = true
		}
	}
	if !found {
		t.Errorf("degradations = %v, want one naming app/broken.py", report.Debug.Degradations)
	}
}

func TestSelect_DebugDump(t *testing.T) {
	root := writeTree(t, pythonTree())
	cfg := pythonConfig(root)
	cfg.Debug = true
	s := newSelector(t, cfg)

	report, err := s.Select(context.Background(), Request{Seeds: []string{"app/models.py"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if report.Debug == nil {
		t.Fatal("debug dump should be present")
	}
	if len(report.Debug.Seeds) != 1 {
		t.Fatalf("seed details = %d, want 1", len(report.Debug.Seeds))
	}
	detail := report.Debug.Seeds[0]
	if detail.Path != "app/models.py" {
		t.Errorf("path = %q, want app/models.py", detail.Path)
	}
	if !reflect.DeepEqual(detail.DirectDependents, []string{"app/service.py"}) {
		t.Errorf("dependents = %v, want [app/service.py]", detail.DirectDependents)
	}
	if !reflect.DeepEqual(detail.DirectDependencies, []string{}) {
		t.Errorf("dependencies = %v, want empty", detail.DirectDependencies)
	}
	if !reflect.DeepEqual(detail.CoveringTests, []string{"tests/test_service.py"}) {
		t.Errorf("covering tests = %v, want [tests/test_service.py]", detail.CoveringTests)
	}
}

func TestSelect_DebugOffOmitsDump(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	report, err := s.Select(context.Background(), Request{Seeds: []string{"app/models.py"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if report.Debug != nil {
		t.Error("debug dump should be omitted when disabled")
	}
}

func TestBuildGraph_Stats(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	build, err := s.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}

	if build.Stats.FilesScanned != 8 {
		t.Errorf("files scanned = %d, want 8", build.Stats.FilesScanned)
	}
	if build.Stats.Nodes != 8 {
		t.Errorf("nodes = %d, want 8", build.Stats.Nodes)
	}
	// service, test_service, and test_util each import one app module,
	// which resolves to the module file plus the package __init__.
	if build.Stats.Edges != 6 {
		t.Errorf("edges = %d, want 6", build.Stats.Edges)
	}
	if !build.Graph.IsFrozen() {
		t.Error("graph should be frozen after assembly")
	}
	if build.Stats.UnresolvedRefs != 0 {
		t.Errorf("unresolved refs = %d, want 0", build.Stats.UnresolvedRefs)
	}
}

func TestBuildGraph_CountsDanglingLocalImports(t *testing.T) {
	files := pythonTree()
	// References a module under the scanned app/ tree that does not
	// exist; external imports (os, requests) must not be counted.
	files["app/service.py"] = "import os\nimport requests\nfrom app.missing import thing\n"
	root := writeTree(t, files)
	s := newSelector(t, pythonConfig(root))

	build, err := s.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	// "app.missing" falls back to app/__init__.py via the package
	// prefix, so it resolves and only truly dangling refs would count.
	// "os" and "requests" look external and are ignored either way.
	if build.Stats.UnresolvedRefs != 0 {
		t.Errorf("unresolved refs = %d, want 0", build.Stats.UnresolvedRefs)
	}

	// A top-level local module with no file anywhere is dangling.
	files["app/service.py"] = "import tools.shed\n"
	files["tools/helper.py"] = "Y = 2\n"
	root = writeTree(t, files)
	s = newSelector(t, pythonConfig(root))

	build, err = s.BuildGraph(context.Background())
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if build.Stats.UnresolvedRefs != 1 {
		t.Errorf("unresolved refs = %d, want 1", build.Stats.UnresolvedRefs)
	}
}

func TestSelect_GoProject(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod":          "module example.com/demo\n\ngo 1.23\n",
		"pkg/a/a.go":      "package a\n\nfunc A() int { return 1 }\n",
		"pkg/b/b.go":      "package b\n\nimport \"example.com/demo/pkg/a\"\n\nfunc B() int { return a.A() }\n",
		"pkg/b/b_test.go": "package b_test\n\nimport (\n\t\"testing\"\n\n\t\"example.com/demo/pkg/b\"\n)\n\nfunc TestB(t *testing.T) {\n\tif b.B() != 1 {\n\t\tt.Fatal(\"b\")\n\t}\n}\n",
	})

	cfg := config.Default()
	cfg.Root = root
	cfg.Language = config.LanguageGo
	cfg.Scan.Extensions = []string{".go"}
	cfg.Tests.FilePrefix = ""
	cfg.Tests.FileSuffix = "_test.go"
	cfg.Tests.DirNames = nil
	s := newSelector(t, cfg)

	report, err := s.Select(context.Background(), Request{Seeds: []string{"pkg/a/a.go"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	want := []string{"pkg/b/b_test.go"}
	if !reflect.DeepEqual(report.AffectedTests, want) {
		t.Errorf("affected = %v, want %v", report.AffectedTests, want)
	}
	// "testing" is external and must not count as dangling.
	if report.Stats.UnresolvedRefs != 0 {
		t.Errorf("unresolved refs = %d, want 0", report.Stats.UnresolvedRefs)
	}
}

func TestSelect_ContextCancelled(t *testing.T) {
	root := writeTree(t, pythonTree())
	s := newSelector(t, pythonConfig(root))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Select(ctx, Request{Seeds: []string{"app/models.py"}}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
