// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package selector orchestrates the selection pipeline.
//
// One Select call runs the whole chain: scan the tree, extract
// imports in parallel, assemble and freeze the dependency graph,
// compute the impact set for the seeds, and map it to affected tests.
// Every run produces a Report; degradation along the way widens the
// selection or surfaces in the report, but never silently narrows it.
package selector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/services/engine/config"
	"github.com/AleutianAI/tia/services/engine/extract"
	"github.com/AleutianAI/tia/services/engine/graph"
	"github.com/AleutianAI/tia/services/engine/impact"
	"github.com/AleutianAI/tia/services/engine/resolve"
	"github.com/AleutianAI/tia/services/engine/scan"
	"github.com/AleutianAI/tia/services/engine/testmap"
)

// Request describes one selection run.
type Request struct {
	// Seeds are the changed files, root-relative slash paths.
	Seeds []string

	// ForceAll bypasses analysis and selects every test.
	ForceAll bool

	// ForceAllReason explains a ForceAll for the report
	// ("--all", "trigger-all: requirements.txt").
	ForceAllReason string
}

// Build is an assembled dependency graph with its provenance.
type Build struct {
	Graph        *graph.Graph
	Scan         *scan.Result
	Stats        Stats
	Degradations []string
}

// Selector runs the selection pipeline.
//
// # Thread Safety
//
// Safe for concurrent use. Each Select call builds its own graph; the
// extraction cache is the only shared state and is internally
// synchronized.
type Selector struct {
	cfg        config.Config
	log        *logging.Logger
	scanner    *scan.Scanner
	extractor  extract.Extractor
	classifier *testmap.Classifier
}

// New creates a Selector from validated configuration.
func New(cfg config.Config, log *logging.Logger) (*Selector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}

	var base extract.Extractor
	switch cfg.Language {
	case config.LanguageGo:
		base = extract.NewGo()
	default:
		base = extract.NewPython()
	}
	cached, err := extract.NewCaching(base, extract.DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating extraction cache: %w", err)
	}

	return &Selector{
		cfg: cfg,
		log: log,
		scanner: scan.New(cfg.Scan.ExcludeDirs, cfg.Scan.Extensions,
			scan.WithFollowSymlinks(cfg.Scan.FollowSymlinks)),
		extractor:  cached,
		classifier: testmap.NewClassifier(cfg.Tests.FilePrefix, cfg.Tests.FileSuffix, cfg.Tests.DirNames),
	}, nil
}

// Classifier returns the selector's test classifier.
func (s *Selector) Classifier() *testmap.Classifier {
	return s.classifier
}

// Select runs the full pipeline for one request.
//
// Outputs:
//
//	*Report - always complete on success; an empty AffectedTests list
//	          is a valid result, not an error.
//	error   - scan failures, cancelled context, or an unreadable
//	          project. Analysis-level degradation is reported, not
//	          returned.
func (s *Selector) Select(ctx context.Context, req Request) (*Report, error) {
	ctx, span := startSelectSpan(ctx, len(req.Seeds), req.ForceAll)
	defer span.End()

	start := time.Now()
	report := &Report{
		APIVersion:     APIVersion,
		RunID:          uuid.NewString(),
		Root:           s.cfg.Root,
		StartedAtMilli: start.UnixMilli(),
		Seeds:          sortedUnique(req.Seeds),
		AffectedTests:  []string{},
	}

	if len(report.Seeds) == 0 && !req.ForceAll {
		report.Warnings = append(report.Warnings, "no changed files; nothing to analyze")
		report.Stats.DurationMs = time.Since(start).Milliseconds()
		recordSelectMetrics(ctx, time.Since(start), 0, false)
		return report, nil
	}

	build, err := s.BuildGraph(ctx)
	if err != nil {
		return nil, err
	}
	report.Stats = build.Stats

	s.log.Info("graph assembled",
		"run_id", report.RunID,
		"files", build.Stats.FilesScanned,
		"edges", build.Stats.Edges,
		"parse_failures", build.Stats.ParseFailures)

	mapper := testmap.NewMapper(build.Graph, s.classifier, s.cfg.Tests.HelperPolicy)

	if req.ForceAll {
		report.SelectAll = true
		report.SelectAllReason = req.ForceAllReason
		if report.SelectAllReason == "" {
			report.SelectAllReason = "requested"
		}
		report.AffectedTests = s.allTests(build.Graph)
	} else {
		imp, err := impact.NewAnalyzer(build.Graph).Analyze(ctx, report.Seeds)
		if err != nil {
			return nil, err
		}
		for _, unknown := range imp.UnknownSeeds {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("changed file not in dependency graph: %s (kept in impact set)", unknown))
		}
		report.Stats.UnknownSeeds = len(imp.UnknownSeeds)
		report.AffectedTests = mapper.AffectedTests(imp, report.Seeds)
	}

	if s.cfg.Debug {
		report.Debug = s.debugDump(build, mapper, report.Seeds)
	}

	report.Stats.DurationMs = time.Since(start).Milliseconds()
	setSelectSpanResult(span, len(report.AffectedTests), report.Stats.ParseFailures)
	recordSelectMetrics(ctx, time.Since(start), len(report.AffectedTests), report.SelectAll)

	s.log.Info("selection complete",
		"run_id", report.RunID,
		"affected_tests", len(report.AffectedTests),
		"select_all", report.SelectAll,
		"duration_ms", report.Stats.DurationMs)

	return report, nil
}

// BuildGraph scans the tree, extracts imports in parallel, and returns
// the frozen dependency graph.
func (s *Selector) BuildGraph(ctx context.Context) (*Build, error) {
	ctx, span := startBuildSpan(ctx)
	defer span.End()

	scanResult, err := s.scanner.Scan(ctx, s.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.cfg.Root, err)
	}
	if scanResult.Incomplete {
		return nil, fmt.Errorf("scan interrupted: %w", ctx.Err())
	}

	build := &Build{Scan: scanResult}
	build.Stats.FilesScanned = len(scanResult.Files)
	build.Stats.SkippedDirs = len(scanResult.Skipped)

	resolver, modulePath, err := s.newResolver(scanResult)
	if err != nil {
		return nil, err
	}

	results, degradations, err := s.extractAll(ctx, scanResult)
	if err != nil {
		return nil, err
	}
	build.Degradations = degradations

	g := graph.New(scanResult.Root)
	for _, f := range scanResult.Files {
		if err := g.AddFile(f); err != nil {
			return nil, err
		}
	}

	topLevel := topLevelSegments(scanResult.Files)
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.ParseFailed {
			build.Stats.ParseFailures++
			build.Degradations = append(build.Degradations,
				fmt.Sprintf("parse failed: %s (contributes no edges)", res.File))
			s.log.Warn("parse failed", "file", res.File)
			continue
		}
		build.Stats.DynamicSkipped += res.DynamicSkipped
		for _, ref := range res.Refs {
			targets := resolver.Resolve(ref)
			if len(targets) == 0 {
				if s.refLooksLocal(ref, topLevel, modulePath) {
					build.Stats.UnresolvedRefs++
				}
				continue
			}
			for _, to := range targets {
				if err := g.AddEdge(res.File, to); err != nil {
					return nil, err
				}
			}
		}
	}

	g.Freeze()
	build.Graph = g
	build.Stats.Nodes = g.NodeCount()
	build.Stats.Edges = g.EdgeCount()
	return build, nil
}

// extractAll fans file extraction out across the worker pool and joins
// before returning; graph assembly never sees partial results.
func (s *Selector) extractAll(ctx context.Context, scanResult *scan.Result) ([]*extract.Result, []string, error) {
	files := scanResult.Files
	results := make([]*extract.Result, len(files))
	readErrs := make([]string, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	if s.cfg.Workers > 0 {
		g.SetLimit(s.cfg.Workers)
	}

	for i, file := range files {
		g.Go(func() error {
			content, err := os.ReadFile(filepath.Join(scanResult.Root, filepath.FromSlash(file)))
			if err != nil {
				// File vanished between scan and read, or permissions
				// changed. Degrade to a parse failure for this file.
				results[i] = &extract.Result{File: file, ParseFailed: true}
				readErrs[i] = fmt.Sprintf("read failed: %s: %v", file, err)
				return nil
			}
			res, err := s.extractor.Extract(gCtx, file, content)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extracting imports: %w", err)
	}

	var degradations []string
	for _, msg := range readErrs {
		if msg != "" {
			degradations = append(degradations, msg)
		}
	}
	return results, degradations, nil
}

// newResolver builds the language resolver for a scanned tree.
func (s *Selector) newResolver(scanResult *scan.Result) (resolve.Resolver, string, error) {
	switch s.cfg.Language {
	case config.LanguageGo:
		modulePath, err := resolve.ModulePathFromDir(scanResult.Root)
		if err != nil {
			return nil, "", fmt.Errorf("resolving module path: %w", err)
		}
		return resolve.NewGo(modulePath, scanResult.FileSet()), modulePath, nil
	default:
		return resolve.NewPython(scanResult.FileSet()), "", nil
	}
}

// refLooksLocal reports whether an unresolved reference plausibly
// named a project file. External imports (stdlib, site-packages,
// other modules) resolve to nothing by design and are not
// degradation; a project-looking reference that resolves to nothing
// is a dangling import worth counting.
func (s *Selector) refLooksLocal(ref resolve.Ref, topLevel map[string]bool, modulePath string) bool {
	if ref.Level > 0 {
		return true
	}
	if s.cfg.Language == config.LanguageGo {
		return ref.Module == modulePath || strings.HasPrefix(ref.Module, modulePath+"/")
	}
	first := ref.Module
	if i := strings.IndexByte(first, '.'); i >= 0 {
		first = first[:i]
	}
	return topLevel[first]
}

// allTests returns every test file in the graph, sorted.
func (s *Selector) allTests(g *graph.Graph) []string {
	var out []string
	for _, f := range g.Files() {
		if s.classifier.IsTest(f) {
			out = append(out, f)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// debugDump assembles the per-seed analysis breakdown.
func (s *Selector) debugDump(build *Build, mapper *testmap.Mapper, seeds []string) *Debug {
	coverage := mapper.Coverage(seeds)

	dump := &Debug{
		Seeds:        make([]SeedDetail, 0, len(seeds)),
		Degradations: build.Degradations,
	}
	for _, seed := range seeds {
		detail := SeedDetail{
			Path:               seed,
			DirectDependencies: build.Graph.Dependencies(seed),
			DirectDependents:   build.Graph.Dependents(seed),
			CoveringTests:      coverage[seed],
		}
		if detail.DirectDependencies == nil {
			detail.DirectDependencies = []string{}
		}
		if detail.DirectDependents == nil {
			detail.DirectDependents = []string{}
		}
		if detail.CoveringTests == nil {
			detail.CoveringTests = []string{}
		}
		dump.Seeds = append(dump.Seeds, detail)
	}
	return dump
}

// topLevelSegments collects the first path segment of every scanned
// file, plus bare module names for root-level files.
func topLevelSegments(files []string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range files {
		if i := strings.IndexByte(f, '/'); i >= 0 {
			out[f[:i]] = true
			continue
		}
		if j := strings.LastIndexByte(f, '.'); j > 0 {
			out[f[:j]] = true
		}
	}
	return out
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
