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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/pkg/ux"
	"github.com/AleutianAI/tia/services/engine/changes"
	"github.com/AleutianAI/tia/services/engine/config"
	"github.com/AleutianAI/tia/services/engine/runner"
	"github.com/AleutianAI/tia/services/engine/selector"
	"github.com/AleutianAI/tia/services/engine/watch"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	watchDebounce time.Duration
	watchInterval time.Duration
	watchRun      bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-select affected tests whenever source files change",
	Long: `Watch the project tree and run a selection pass for every batch of
changed files. Rapid edits are coalesced: a batch is delivered once
the tree has been quiet for the debounce window, and passes never run
closer together than the interval floor.

Every pass rebuilds the dependency graph, so selections always
reflect the tree on disk.

Examples:
  tia watch
  tia watch --run                    # run the selected tests per batch
  tia watch --debounce 1s --interval 5s`,
	Args: cobra.NoArgs,
	Run:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce,
		"Quiet period before a change batch is analyzed")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", watch.DefaultMinInterval,
		"Minimum time between selection passes")
	watchCmd.Flags().BoolVar(&watchRun, "run", false,
		"Invoke the configured test runner after each selection")

	rootCmd.AddCommand(watchCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runWatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadEngineConfig()
	if err != nil {
		outputError("Failed to load configuration", err)
		os.Exit(ExitError)
	}

	log := newCLILogger()

	sel, err := selector.New(cfg, log)
	if err != nil {
		outputError("Failed to initialize the selection engine", err)
		os.Exit(ExitError)
	}

	w, err := watch.New(watch.Config{
		Root:        cfg.Root,
		ExcludeDirs: cfg.Scan.ExcludeDirs,
		Extensions:  cfg.Scan.Extensions,
		TriggerAll:  cfg.Changes.TriggerAll,
		Debounce:    watchDebounce,
		MinInterval: watchInterval,
	}, watchPass(cfg, sel, log), log)
	if err != nil {
		outputError("Failed to create the watcher", err)
		os.Exit(ExitError)
	}
	defer w.Stop()

	ux.Info(fmt.Sprintf("watching %s (interrupt to stop)", cfg.Root))
	if err := w.Start(ctx); err != nil {
		outputError("Watcher stopped", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

// watchPass builds the per-batch callback: filter the batch, select,
// render, and optionally run the tests. Failures are reported and the
// watch continues.
func watchPass(cfg config.Config, sel *selector.Selector, log *logging.Logger) watch.Callback {
	filter := changes.NewFilter(cfg.Scan.Extensions, cfg.Changes.TriggerAll)

	return func(ctx context.Context, changed []string) {
		res := filter.Apply(changed)

		req := selector.Request{Seeds: res.Seeds}
		if res.TriggerAll {
			req.ForceAll = true
			req.ForceAllReason = fmt.Sprintf("trigger-all: %s (%s)", res.TriggerPath, res.TriggerPattern)
		}

		report, err := sel.Select(ctx, req)
		if err != nil {
			ux.Error(fmt.Sprintf("selection failed: %v", err))
			return
		}

		ux.Title(fmt.Sprintf("Change detected at %s", time.Now().Format("15:04:05")))
		renderReport(report)

		if !watchRun || len(report.AffectedTests) == 0 {
			return
		}

		r, err := runner.New(cfg.Runner, cfg.Root, log)
		if err != nil {
			ux.Error(fmt.Sprintf("runner configuration: %v", err))
			return
		}
		result, err := r.Run(ctx, report.AffectedTests)
		switch {
		case err != nil:
			ux.Error(fmt.Sprintf("test run failed: %v", err))
		case result.Passed():
			ux.Success(fmt.Sprintf("tests passed in %s", result.Duration.Round(time.Millisecond)))
		default:
			ux.Error(fmt.Sprintf("tests failed (exit %d)", result.ExitCode))
		}
	}
}
