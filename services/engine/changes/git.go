// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changes discovers the changed-file seed set.
//
// Seeds come from one of three sources: git (diff against a base
// ref), a unified diff file, or an explicit list. Whatever the
// source, the output is root-relative slash paths; deleted files stay
// in the set — the impact analyzer treats them as unknown seeds
// rather than dropping them.
package changes

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitClient runs git change queries against a working directory.
//
// # Thread Safety
//
// GitClient is safe for concurrent use.
type GitClient struct {
	workDir string
}

// NewGitClient creates a GitClient rooted at workDir.
func NewGitClient(workDir string) *GitClient {
	return &GitClient{workDir: workDir}
}

// IsRepo checks whether the working directory is inside a git
// repository.
func (g *GitClient) IsRepo() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = g.workDir
	return cmd.Run() == nil
}

// ChangedFiles returns the paths changed relative to base.
//
// base is any ref expression git diff accepts: "origin/main" compares
// the working tree against that ref, "origin/main...HEAD" compares
// merge-base to HEAD for pull-request style diffs. Deleted files are
// included. Paths are slash-separated and repo-relative.
func (g *GitClient) ChangedFiles(ctx context.Context, base string) ([]string, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if base == "" {
		return nil, fmt.Errorf("diff base must not be empty")
	}

	cmd := exec.CommandContext(ctx, "git", "diff", "--name-only", base)
	cmd.Dir = g.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git diff --name-only %s: %w: %s", base, err, strings.TrimSpace(stderr.String()))
	}

	var files []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		files = append(files, filepath.ToSlash(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing git output: %w", err)
	}
	return files, nil
}
