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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/services/engine/changes"
	"github.com/AleutianAI/tia/services/engine/config"
	"github.com/AleutianAI/tia/services/engine/runner"
	"github.com/AleutianAI/tia/services/engine/selector"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// Change source flags
	selectBase     string
	selectDiffFile string

	// Policy flags
	selectAllFlag bool
	selectDebug   bool

	// Execution flags
	selectRun bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var selectCmd = &cobra.Command{
	Use:   "select [files...]",
	Short: "Select the tests affected by changed files",
	Long: `Select the test files affected by a set of changed source files.

The command scans the project, builds the module dependency graph,
propagates the change impact through reverse dependencies, and prints
the affected test files.

Change Sources:
  [files...]    Analyze an explicit list of changed files
  --diff-file   Read changed paths from a unified diff
  (default)     Ask git for changes against --base

Examples:
  tia select                          # git diff against origin/main
  tia select --base main --run        # select and run the tests
  tia select --diff-file change.patch
  tia select app/models.py app/views.py
  tia select --all --run              # run everything

CI/CD Integration:
  tia select --base origin/main --run --output json
  (exit 0 = selection/tests passed, 1 = test failures, 2 = tia error)`,
	Args: cobra.ArbitraryArgs,
	Run:  runSelect,
}

func init() {
	selectCmd.Flags().StringVar(&selectBase, "base", "",
		"Git ref to diff against (default from config: origin/main)")
	selectCmd.Flags().StringVar(&selectDiffFile, "diff-file", "",
		"Read changed paths from a unified diff file instead of git")
	selectCmd.Flags().BoolVar(&selectAllFlag, "all", false,
		"Bypass analysis and select every test")
	selectCmd.Flags().BoolVar(&selectDebug, "debug", false,
		"Attach the per-seed analysis dump to the report")
	selectCmd.Flags().BoolVar(&selectRun, "run", false,
		"Invoke the configured test runner on the selection")

	rootCmd.AddCommand(selectCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runSelect(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadEngineConfig()
	if err != nil {
		outputError("Failed to load configuration", err)
		os.Exit(ExitError)
	}
	if selectDebug {
		cfg.Debug = true
	}

	log := newCLILogger()

	src, err := resolveSeeds(ctx, cfg, args)
	if err != nil {
		if !selectAllFlag {
			outputError("Failed to determine changed files", err)
			os.Exit(ExitError)
		}
		// --all bypasses analysis, so a missing change source is only
		// worth a warning.
		log.Warn("change discovery failed; continuing with --all", "error", err)
		src = seedSource{}
	}
	if selectAllFlag {
		src.forceAll = true
		src.reason = "--all"
	}

	sel, err := selector.New(cfg, log)
	if err != nil {
		outputError("Failed to initialize the selection engine", err)
		os.Exit(ExitError)
	}

	report, err := sel.Select(ctx, selector.Request{
		Seeds:          src.seeds,
		ForceAll:       src.forceAll,
		ForceAllReason: src.reason,
	})
	if err != nil {
		outputError("Selection failed", err)
		os.Exit(ExitError)
	}

	if wantJSON() {
		outputJSON(report)
	} else {
		renderReport(report)
	}

	if !selectRun {
		os.Exit(ExitSuccess)
	}
	os.Exit(runTests(ctx, cfg, log, report))
}

// runTests hands the selection to the configured runner and maps the
// outcome to an exit code.
func runTests(ctx context.Context, cfg config.Config, log *logging.Logger, report *selector.Report) int {
	r, err := runner.New(cfg.Runner, cfg.Root, log)
	if err != nil {
		outputError("Failed to configure the test runner", err)
		return ExitError
	}

	result, err := r.Run(ctx, report.AffectedTests)
	code := runnerExit(result, err)
	if err != nil {
		outputError("Test run failed", err)
	}
	return code
}

// =============================================================================
// SEED RESOLUTION
// =============================================================================

// seedSource is the resolved change input for one selection.
type seedSource struct {
	seeds    []string
	forceAll bool
	reason   string
}

// resolveSeeds turns the change source (explicit args, a diff file, or
// git) into filtered seeds plus any trigger-all escalation.
func resolveSeeds(ctx context.Context, cfg config.Config, args []string) (seedSource, error) {
	changed, err := changedPaths(ctx, cfg, args)
	if err != nil {
		return seedSource{}, err
	}

	filter := changes.NewFilter(cfg.Scan.Extensions, cfg.Changes.TriggerAll)
	res := filter.Apply(changed)

	src := seedSource{seeds: res.Seeds}
	if res.TriggerAll {
		src.forceAll = true
		src.reason = fmt.Sprintf("trigger-all: %s (%s)", res.TriggerPath, res.TriggerPattern)
	}
	return src, nil
}

// changedPaths collects raw changed paths from the selected source.
func changedPaths(ctx context.Context, cfg config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	if selectDiffFile != "" {
		paths, err := changes.ParseDiffFile(selectDiffFile)
		if err != nil {
			return nil, fmt.Errorf("reading diff file: %w", err)
		}
		return paths, nil
	}

	git := changes.NewGitClient(cfg.Root)
	if !git.IsRepo() {
		return nil, fmt.Errorf("%s is not a git repository; pass changed files or --diff-file", cfg.Root)
	}

	base := selectBase
	if base == "" {
		base = cfg.Changes.GitBase
	}
	paths, err := git.ChangedFiles(ctx, base)
	if err != nil {
		return nil, err
	}
	return paths, nil
}
