// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/AleutianAI/tia/services/engine/resolve"
)

// GoExtractor extracts import declarations from Go source.
//
// Go imports only appear at the top of a file, so the walk is shallow:
// import_declaration nodes and their import_spec children.
//
// # Thread Safety
//
// Safe for concurrent use.
type GoExtractor struct {
	maxFileSize int64
}

// GoOption configures a GoExtractor.
type GoOption func(*GoExtractor)

// WithGoMaxFileSize caps the file size the extractor will parse.
func WithGoMaxFileSize(bytes int64) GoOption {
	return func(e *GoExtractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// NewGo creates a GoExtractor.
func NewGo(opts ...GoOption) *GoExtractor {
	e := &GoExtractor{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses content and returns the import references.
func (e *GoExtractor) Extract(ctx context.Context, file string, content []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled before start: %w", err)
	}

	start := time.Now()
	result := &Result{File: file}

	if int64(len(content)) > e.maxFileSize {
		result.ParseFailed = true
		recordExtractMetrics(ctx, "go", time.Since(start), 0, false)
		return result, nil
	}
	if !utf8.Valid(content) {
		result.ParseFailed = true
		recordExtractMetrics(ctx, "go", time.Since(start), 0, false)
		return result, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		result.ParseFailed = true
		recordExtractMetrics(ctx, "go", time.Since(start), 0, false)
		return result, nil
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() == "import_declaration" {
			e.processImportDecl(child, content, file, result)
		}
	}

	recordExtractMetrics(ctx, "go", time.Since(start), len(result.Refs), true)
	return result, nil
}

// Language returns the canonical language name for this extractor.
func (e *GoExtractor) Language() string {
	return "go"
}

// processImportDecl handles single and grouped import declarations.
func (e *GoExtractor) processImportDecl(node *sitter.Node, content []byte, file string, result *Result) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			e.processImportSpec(child, content, file, result)
		case "import_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() == "import_spec" {
					e.processImportSpec(spec, content, file, result)
				}
			}
		}
	}
}

func (e *GoExtractor) processImportSpec(node *sitter.Node, content []byte, file string, result *Result) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "interpreted_string_literal" {
			path := strings.Trim(nodeText(child, content), "\"")
			if path != "" {
				result.Refs = append(result.Refs, resolve.Ref{
					Module:   path,
					FromFile: file,
				})
			}
			return
		}
	}
}

// Compile-time interface compliance check.
var _ Extractor = (*GoExtractor)(nil)
