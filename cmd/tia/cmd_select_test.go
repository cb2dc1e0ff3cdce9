// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/AleutianAI/tia/services/engine/config"
)

// =============================================================================
// SEED RESOLUTION TESTS
// =============================================================================

func TestResolveSeeds_ExplicitFiles(t *testing.T) {
	cfg := config.Default()

	src, err := resolveSeeds(context.Background(), cfg,
		[]string{"app/a.py", "README.md", "app/a.py", "app/b.py"})
	if err != nil {
		t.Fatalf("resolveSeeds: %v", err)
	}

	want := []string{"app/a.py", "app/b.py"}
	if !reflect.DeepEqual(src.seeds, want) {
		t.Errorf("seeds = %v, want %v", src.seeds, want)
	}
	if src.forceAll {
		t.Error("forceAll should be false without trigger files")
	}
}

func TestResolveSeeds_TriggerAll(t *testing.T) {
	cfg := config.Default()

	src, err := resolveSeeds(context.Background(), cfg,
		[]string{"app/a.py", "requirements.txt"})
	if err != nil {
		t.Fatalf("resolveSeeds: %v", err)
	}

	if !src.forceAll {
		t.Fatal("a requirements change should force select-all")
	}
	if !strings.Contains(src.reason, "trigger-all: requirements.txt") {
		t.Errorf("reason = %q, want the trigger path named", src.reason)
	}
	// Source seeds are still collected for the report.
	if !reflect.DeepEqual(src.seeds, []string{"app/a.py"}) {
		t.Errorf("seeds = %v, want [app/a.py]", src.seeds)
	}
}

func TestChangedPaths_DiffFile(t *testing.T) {
	orig := selectDiffFile
	defer func() { selectDiffFile = orig }()

	diffContent := `diff --git a/app/models.py b/app/models.py
index 83db48f..bf269f4 100644
--- a/app/models.py
+++ b/app/models.py
@@ -1 +1,2 @@
 class User:
+    name = ""
diff --git a/docs/notes.md b/docs/notes.md
index 83db48f..bf269f4 100644
--- a/docs/notes.md
+++ b/docs/notes.md
@@ -1 +1,2 @@
 notes
+more notes
`
	path := filepath.Join(t.TempDir(), "change.patch")
	if err := os.WriteFile(path, []byte(diffContent), 0o644); err != nil {
		t.Fatalf("write diff: %v", err)
	}
	selectDiffFile = path

	paths, err := changedPaths(context.Background(), config.Default(), nil)
	if err != nil {
		t.Fatalf("changedPaths: %v", err)
	}

	want := []string{"app/models.py", "docs/notes.md"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestChangedPaths_ExplicitArgsWinOverDiffFile(t *testing.T) {
	orig := selectDiffFile
	defer func() { selectDiffFile = orig }()
	selectDiffFile = "/nonexistent.patch"

	paths, err := changedPaths(context.Background(), config.Default(), []string{"app/x.py"})
	if err != nil {
		t.Fatalf("changedPaths: %v", err)
	}
	if !reflect.DeepEqual(paths, []string{"app/x.py"}) {
		t.Errorf("paths = %v, want [app/x.py]", paths)
	}
}

func TestChangedPaths_NotARepo(t *testing.T) {
	orig := selectDiffFile
	defer func() { selectDiffFile = orig }()
	selectDiffFile = ""

	cfg := config.Default()
	cfg.Root = t.TempDir()

	_, err := changedPaths(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected error outside a git repository")
	}
	if !strings.Contains(err.Error(), "not a git repository") {
		t.Errorf("err = %v, want a git repository hint", err)
	}
}
