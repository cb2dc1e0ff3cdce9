// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scan discovers the source files of a project tree.
//
// The scanner walks the root recursively, prunes excluded directories
// by path-segment name, and collects files matching the configured
// extensions. All paths in results are slash-separated and relative to
// the root, which is the canonical file identity used by every
// downstream stage.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// =============================================================================
// Types
// =============================================================================

// Skip records a path excluded during the walk and why. Skips are
// informational; they never fail a scan.
type Skip struct {
	// Path is the root-relative, slash-separated path.
	Path string `json:"path"`

	// Reason is a short human-readable cause ("excluded directory",
	// "permission denied", ...).
	Reason string `json:"reason"`
}

// Result is the outcome of a scan.
type Result struct {
	// Root is the absolute root the scan ran against.
	Root string `json:"root"`

	// Files are the discovered source files, root-relative,
	// slash-separated, sorted lexicographically.
	Files []string `json:"files"`

	// Skipped lists everything the walk pruned or could not read.
	Skipped []Skip `json:"skipped,omitempty"`

	// Incomplete is true when the walk was cancelled mid-flight.
	Incomplete bool `json:"incomplete,omitempty"`
}

// FileSet returns the files as a membership set.
func (r *Result) FileSet() map[string]bool {
	set := make(map[string]bool, len(r.Files))
	for _, f := range r.Files {
		set[f] = true
	}
	return set
}

// =============================================================================
// Scanner
// =============================================================================

// Scanner walks a project tree collecting source files.
//
// # Thread Safety
//
// A Scanner is immutable after construction and safe for concurrent
// Scan calls.
type Scanner struct {
	excludeDirs    map[string]bool
	extensions     map[string]bool
	followSymlinks bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithFollowSymlinks enables descending into symlinked directories.
func WithFollowSymlinks(follow bool) Option {
	return func(s *Scanner) {
		s.followSymlinks = follow
	}
}

// New creates a Scanner.
//
// Inputs:
//
//	excludeDirs - directory names pruned wherever they appear in the tree.
//	extensions  - file extensions to collect, with leading dot (".py").
func New(excludeDirs, extensions []string, opts ...Option) *Scanner {
	s := &Scanner{
		excludeDirs: make(map[string]bool, len(excludeDirs)),
		extensions:  make(map[string]bool, len(extensions)),
	}
	for _, d := range excludeDirs {
		s.excludeDirs[d] = true
	}
	for _, e := range extensions {
		s.extensions[e] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks root and returns the discovered files.
//
// Behavior:
//
//   - Excluded directories are pruned by segment name, recursively.
//   - Symlinks are not followed unless WithFollowSymlinks(true).
//   - Unreadable directories are recorded in Skipped and the walk
//     continues.
//   - Context cancellation sets Incomplete and returns the partial
//     result without error.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidRoot, absRoot)
	}

	result := &Result{Root: absRoot}
	if err := s.scanDir(ctx, absRoot, absRoot, result); err != nil {
		if ctx.Err() != nil {
			result.Incomplete = true
			sort.Strings(result.Files)
			return result, nil
		}
		return result, err
	}

	sort.Strings(result.Files)
	return result, nil
}

// scanDir recursively walks one directory.
func (s *Scanner) scanDir(ctx context.Context, root, dir string, result *Result) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		rel := s.relSlash(root, dir)
		result.Skipped = append(result.Skipped, Skip{Path: rel, Reason: err.Error()})
		return nil // keep walking siblings
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		path := filepath.Join(dir, entry.Name())
		rel := s.relSlash(root, path)

		info, err := os.Lstat(path)
		if err != nil {
			result.Skipped = append(result.Skipped, Skip{Path: rel, Reason: err.Error()})
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if !s.followSymlinks {
				continue
			}
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				result.Skipped = append(result.Skipped, Skip{Path: rel, Reason: err.Error()})
				continue
			}
			targetInfo, err := os.Stat(target)
			if err != nil {
				result.Skipped = append(result.Skipped, Skip{Path: rel, Reason: err.Error()})
				continue
			}
			info = targetInfo
			path = target
		}

		if info.IsDir() {
			if s.excludeDirs[entry.Name()] {
				result.Skipped = append(result.Skipped, Skip{Path: rel, Reason: "excluded directory"})
				continue
			}
			if err := s.scanDir(ctx, root, path, result); err != nil {
				return err
			}
			continue
		}

		if s.extensions[filepath.Ext(entry.Name())] {
			result.Files = append(result.Files, rel)
		}
	}

	return nil
}

func (s *Scanner) relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
