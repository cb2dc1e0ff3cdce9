// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// writeTree creates files under dir; keys are slash-relative paths.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func defaultScanner() *Scanner {
	return New(
		[]string{"venv", ".venv", "build", "dist", ".git", "__pycache__"},
		[]string{".py"},
	)
}

func TestScan_CollectsAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"zebra.py":        "",
		"app/main.py":     "",
		"app/util.py":     "",
		"README.md":       "not python",
		"app/data.json":   "{}",
		"tests/test_a.py": "",
	})

	result, err := defaultScanner().Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	want := []string{"app/main.py", "app/util.py", "tests/test_a.py", "zebra.py"}
	if len(result.Files) != len(want) {
		t.Fatalf("Files = %v, want %v", result.Files, want)
	}
	for i, f := range want {
		if result.Files[i] != f {
			t.Errorf("Files[%d] = %q, want %q", i, result.Files[i], f)
		}
	}
	if !sort.StringsAreSorted(result.Files) {
		t.Error("Files should be sorted")
	}
}

func TestScan_PrunesExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"app/main.py":                "",
		"venv/lib/big.py":            "",
		".venv/other.py":             "",
		"build/out.py":               "",
		"app/__pycache__/cached.py":  "",
		"nested/deep/venv/inner.py":  "",
		"buildtools/keep.py":         "", // name contains "build" but is not the segment
		"app/rebuild/also_keep.py":   "",
		"dist/pkg.py":                "",
		"app/distance/keep_this.py":  "",
		"tests/.git/hooks/hidden.py": "",
	})

	result, err := defaultScanner().Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	set := result.FileSet()
	for _, want := range []string{
		"app/main.py",
		"buildtools/keep.py",
		"app/rebuild/also_keep.py",
		"app/distance/keep_this.py",
	} {
		if !set[want] {
			t.Errorf("expected %q in files, got %v", want, result.Files)
		}
	}
	for _, banned := range []string{
		"venv/lib/big.py",
		".venv/other.py",
		"build/out.py",
		"app/__pycache__/cached.py",
		"nested/deep/venv/inner.py",
		"dist/pkg.py",
		"tests/.git/hooks/hidden.py",
	} {
		if set[banned] {
			t.Errorf("excluded file %q leaked into result", banned)
		}
	}

	// Pruned directories are recorded.
	var prunedCount int
	for _, s := range result.Skipped {
		if s.Reason == "excluded directory" {
			prunedCount++
		}
	}
	if prunedCount == 0 {
		t.Error("expected pruned directories in Skipped")
	}
}

func TestScan_SkipsSymlinksByDefault(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"real/mod.py": "",
	})
	if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	result, err := defaultScanner().Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	set := result.FileSet()
	if set["linked/mod.py"] {
		t.Error("symlinked directory should be skipped by default")
	}
	if !set["real/mod.py"] {
		t.Error("real file missing")
	}
}

func TestScan_FollowSymlinks(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"real/mod.py": "",
	})
	if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := New([]string{}, []string{".py"}, WithFollowSymlinks(true))
	result, err := s.Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if !result.FileSet()["linked/mod.py"] {
		t.Errorf("expected symlinked file, got %v", result.Files)
	}
}

func TestScan_InvalidRoot(t *testing.T) {
	_, err := defaultScanner().Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrInvalidRoot) {
		t.Errorf("error = %v, want ErrInvalidRoot", err)
	}
}

func TestScan_RootIsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.py")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := defaultScanner().Scan(context.Background(), path)
	if !errors.Is(err, ErrInvalidRoot) {
		t.Errorf("error = %v, want ErrInvalidRoot", err)
	}
}

func TestScan_Cancellation(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.py": "", "b.py": ""})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := defaultScanner().Scan(ctx, dir)
	if err != nil {
		t.Fatalf("cancelled scan should return partial result, got error: %v", err)
	}
	if !result.Incomplete {
		t.Error("Incomplete should be true after cancellation")
	}
}

func TestScan_EmptyTree(t *testing.T) {
	result, err := defaultScanner().Scan(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(result.Files) != 0 {
		t.Errorf("Files = %v, want empty", result.Files)
	}
}
