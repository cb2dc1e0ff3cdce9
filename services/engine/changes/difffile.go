// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changes

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ParseDiff extracts changed paths from a unified diff stream.
//
// CI systems often hand the analyzer a patch instead of a checkout
// with refs; this accepts anything git diff / git format-patch emits.
// Renames contribute the new path, deletions the old one.
func ParseDiff(r io.Reader) ([]string, error) {
	reader := diff.NewMultiFileDiffReader(r)

	var files []string
	seen := make(map[string]bool)
	for {
		fd, err := reader.ReadFile()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parsing diff: %w", err)
		}

		path := diffPath(fd)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files, nil
}

// ParseDiffFile extracts changed paths from a diff file on disk.
func ParseDiffFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open diff file: %w", err)
	}
	defer f.Close()
	return ParseDiff(f)
}

// diffPath picks the surviving path of a file diff: the new name
// unless the file was deleted.
func diffPath(fd *diff.FileDiff) string {
	if fd.NewName != "" && fd.NewName != "/dev/null" {
		return stripDiffPrefix(fd.NewName)
	}
	if fd.OrigName != "" && fd.OrigName != "/dev/null" {
		return stripDiffPrefix(fd.OrigName)
	}
	return ""
}

// stripDiffPrefix removes the conventional a/ or b/ prefix.
func stripDiffPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
