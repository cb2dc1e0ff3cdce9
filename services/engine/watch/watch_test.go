// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/tia/pkg/logging"
)

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

func testConfig(root string) Config {
	return Config{
		Root:        root,
		ExcludeDirs: []string{"venv", ".git", "__pycache__"},
		Extensions:  []string{".py"},
		TriggerAll:  []string{"requirements*.txt", "conftest.py"},
		Debounce:    50 * time.Millisecond,
	}
}

// startWatcher runs a watcher over root and returns a channel of
// delivered batches plus a stop function.
func startWatcher(t *testing.T, root string) (chan []string, func()) {
	t.Helper()

	batches := make(chan []string, 8)
	w, err := New(testConfig(root), func(_ context.Context, changed []string) {
		batches <- changed
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(ctx); err != nil {
			t.Errorf("Start: %v", err)
		}
	}()

	// Give the watcher time to arm before the test writes files.
	time.Sleep(200 * time.Millisecond)

	return batches, func() {
		cancel()
		w.Stop()
		<-done
	}
}

// collectPaths drains batches until all want paths are seen or the
// timeout passes.
func collectPaths(t *testing.T, batches chan []string, want []string, timeout time.Duration) map[string]bool {
	t.Helper()

	seen := make(map[string]bool)
	deadline := time.After(timeout)
	for {
		missing := false
		for _, p := range want {
			if !seen[p] {
				missing = true
			}
		}
		if !missing {
			return seen
		}

		select {
		case batch := <-batches:
			for _, p := range batch {
				seen[p] = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v; saw %v", want, seen)
		}
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("X = 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	cb := func(context.Context, []string) {}

	if _, err := New(Config{}, cb, nil); !errors.Is(err, ErrInvalidRoot) {
		t.Errorf("err = %v, want ErrInvalidRoot", err)
	}
	if _, err := New(Config{Root: "/tmp"}, nil, nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("err = %v, want ErrNilCallback", err)
	}
}

func TestQualifies(t *testing.T) {
	root := t.TempDir()
	w, err := New(testConfig(root), func(context.Context, []string) {}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	cases := []struct {
		rel  string
		want bool
	}{
		{"app/models.py", true},
		{"app/models.pyc", false},
		{"requirements.txt", true},
		{"requirements-dev.txt", true},
		{"tests/conftest.py", true},
		{"README.md", false},
	}
	for _, tc := range cases {
		rel, ok := w.qualifies(filepath.Join(root, filepath.FromSlash(tc.rel)))
		if ok != tc.want {
			t.Errorf("qualifies(%s) = %v, want %v", tc.rel, ok, tc.want)
		}
		if ok && rel != tc.rel {
			t.Errorf("qualifies(%s) rel = %q, want %q", tc.rel, rel, tc.rel)
		}
	}
}

func TestWatch_DeliversDebouncedBatch(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "app"), 0o755); err != nil {
		t.Fatal(err)
	}

	batches, stop := startWatcher(t, root)
	defer stop()

	writeFile(t, filepath.Join(root, "app", "a.py"))
	writeFile(t, filepath.Join(root, "app", "b.py"))

	collectPaths(t, batches, []string{"app/a.py", "app/b.py"}, 5*time.Second)
}

func TestWatch_IgnoresExcludedDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "venv"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "app"), 0o755); err != nil {
		t.Fatal(err)
	}

	batches, stop := startWatcher(t, root)
	defer stop()

	writeFile(t, filepath.Join(root, "venv", "ignored.py"))
	writeFile(t, filepath.Join(root, "app", "seen.py"))

	seen := collectPaths(t, batches, []string{"app/seen.py"}, 5*time.Second)
	if seen["venv/ignored.py"] {
		t.Error("excluded directory produced a change")
	}
}

func TestWatch_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "app"), 0o755); err != nil {
		t.Fatal(err)
	}

	batches, stop := startWatcher(t, root)
	defer stop()

	if err := os.MkdirAll(filepath.Join(root, "app", "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Let the create event register the new directory.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(root, "app", "sub", "nested.py"))

	collectPaths(t, batches, []string{"app/sub/nested.py"}, 5*time.Second)
}

func TestTakePending_Empty(t *testing.T) {
	root := t.TempDir()
	w, err := New(testConfig(root), func(context.Context, []string) {}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	if batch := w.takePending(); batch != nil {
		t.Errorf("batch = %v, want nil", batch)
	}
}
