// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract parses source files and collects their import
// references.
//
// Extraction is per-file and stateless, which is what makes the
// selector's parallel fan-out safe: each file is parsed independently
// and the results joined before graph assembly. Parsers are
// tree-sitter based and error-tolerant at the grammar level, but a
// file whose tree contains syntax errors contributes an empty
// reference set and is flagged rather than trusted partially.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/tia/services/engine/resolve"
)

// DefaultMaxFileSize is the largest file an extractor will parse.
const DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB

// Result holds the references extracted from one file.
//
// A Result is immutable once returned; the caching layer hands the
// same instance to multiple callers.
type Result struct {
	// File is the root-relative path of the parsed file.
	File string

	// Refs are the import references found, in source order.
	Refs []resolve.Ref

	// ParseFailed marks a file whose syntax tree contains errors (or
	// that could not be parsed at all). Refs is empty when set.
	ParseFailed bool

	// DynamicSkipped counts dynamic imports whose target was not a
	// plain string literal and therefore could not be resolved.
	DynamicSkipped int
}

// Extractor parses one file into its import references.
//
// # Thread Safety
//
// Implementations must be safe for concurrent Extract calls.
type Extractor interface {
	Extract(ctx context.Context, file string, content []byte) (*Result, error)
}

// =============================================================================
// Python
// =============================================================================

// PythonExtractor extracts import references from Python source.
//
// It recognizes plain imports, from-imports (absolute and relative,
// including bare "from . import x"), and dynamic imports through
// importlib.import_module or __import__ when the target is a string
// literal. Imports are collected wherever they appear: top level,
// inside functions, under conditionals.
//
// # Thread Safety
//
// Safe for concurrent use; each Extract call creates its own
// tree-sitter parser instance.
type PythonExtractor struct {
	maxFileSize int64
}

// PythonOption configures a PythonExtractor.
type PythonOption func(*PythonExtractor)

// WithPythonMaxFileSize caps the file size the extractor will parse.
func WithPythonMaxFileSize(bytes int64) PythonOption {
	return func(e *PythonExtractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// NewPython creates a PythonExtractor.
func NewPython(opts ...PythonOption) *PythonExtractor {
	e := &PythonExtractor{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses content and returns the import references.
//
// Outputs:
//
//	*Result - never nil on success. ParseFailed is set (with empty
//	          Refs) for oversized, non-UTF-8, or syntactically broken
//	          content; none of those are errors.
//	error   - only for infrastructure failures: cancelled context or
//	          a tree-sitter invocation error.
func (e *PythonExtractor) Extract(ctx context.Context, file string, content []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled before start: %w", err)
	}

	start := time.Now()
	result := &Result{File: file}

	if int64(len(content)) > e.maxFileSize {
		result.ParseFailed = true
		recordExtractMetrics(ctx, "python", time.Since(start), 0, false)
		return result, nil
	}
	if !utf8.Valid(content) {
		result.ParseFailed = true
		recordExtractMetrics(ctx, "python", time.Since(start), 0, false)
		return result, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract canceled after parse: %w", err)
	}

	root := tree.RootNode()
	if root == nil || root.HasError() {
		result.ParseFailed = true
		recordExtractMetrics(ctx, "python", time.Since(start), 0, false)
		return result, nil
	}

	e.walk(root, content, file, result)

	recordExtractMetrics(ctx, "python", time.Since(start), len(result.Refs), true)
	return result, nil
}

// Language returns the canonical language name for this extractor.
func (e *PythonExtractor) Language() string {
	return "python"
}

// walk visits every node collecting import references.
func (e *PythonExtractor) walk(node *sitter.Node, content []byte, file string, result *Result) {
	switch node.Type() {
	case "import_statement":
		e.processImport(node, content, file, result)
		return
	case "import_from_statement":
		e.processImportFrom(node, content, file, result)
		return
	case "call":
		if e.processDynamicImport(node, content, file, result) {
			return
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		e.walk(node.Child(i), content, file, result)
	}
}

// processImport handles 'import foo' and 'import foo.bar as baz'.
func (e *PythonExtractor) processImport(node *sitter.Node, content []byte, file string, result *Result) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			result.Refs = append(result.Refs, resolve.Ref{
				Module:   nodeText(child, content),
				FromFile: file,
			})
		case "aliased_import":
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				if grandchild.Type() == "dotted_name" {
					result.Refs = append(result.Refs, resolve.Ref{
						Module:   nodeText(grandchild, content),
						FromFile: file,
					})
					break
				}
			}
		}
	}
}

// processImportFrom handles 'from x import y' in all its forms.
func (e *PythonExtractor) processImportFrom(node *sitter.Node, content []byte, file string, result *Result) {
	var module string
	var level int
	var isRelative bool
	var sawImport bool

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "relative_import":
			// relative_import holds import_prefix (the dots) and
			// optionally a dotted_name.
			isRelative = true
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case "import_prefix":
					level = len(nodeText(grandchild, content))
				case "dotted_name":
					module = nodeText(grandchild, content)
				}
			}
		case "dotted_name":
			// Before the import keyword this is the module path; after
			// it, imported names, which resolve through the module.
			if !sawImport {
				module = nodeText(child, content)
			}
		}
	}

	if !isRelative && module == "" {
		return
	}
	result.Refs = append(result.Refs, resolve.Ref{
		Module:   module,
		Level:    level,
		FromFile: file,
	})
}

// processDynamicImport recognizes importlib.import_module("x") and
// __import__("x") with a literal target. Returns true when the call
// was a dynamic import (resolved or skipped).
func (e *PythonExtractor) processDynamicImport(node *sitter.Node, content []byte, file string, result *Result) bool {
	var fn *sitter.Node
	var args *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "attribute":
			if fn == nil {
				fn = child
			}
		case "argument_list":
			args = child
		}
	}
	if fn == nil || args == nil {
		return false
	}

	switch nodeText(fn, content) {
	case "__import__", "importlib.import_module", "import_module":
	default:
		return false
	}

	// First positional argument decides resolvability.
	var firstArg *sitter.Node
	for i := 0; i < int(args.ChildCount()); i++ {
		child := args.Child(i)
		t := child.Type()
		if t == "(" || t == ")" || t == "," {
			continue
		}
		firstArg = child
		break
	}
	if firstArg == nil {
		return false
	}

	if firstArg.Type() != "string" {
		result.DynamicSkipped++
		return true
	}
	raw := nodeText(firstArg, content)
	if strings.HasPrefix(raw, "f\"") || strings.HasPrefix(raw, "f'") {
		// Interpolated target, not a literal.
		result.DynamicSkipped++
		return true
	}

	module := strings.Trim(raw, `"'`)
	if module == "" {
		result.DynamicSkipped++
		return true
	}
	result.Refs = append(result.Refs, resolve.Ref{
		Module:   module,
		FromFile: file,
	})
	return true
}

func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// Compile-time interface compliance check.
var _ Extractor = (*PythonExtractor)(nil)
