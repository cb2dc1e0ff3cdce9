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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tia/pkg/ux"
	"github.com/AleutianAI/tia/services/engine/config"
	"github.com/AleutianAI/tia/services/engine/runstore"
	"github.com/AleutianAI/tia/services/engine/selector"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var runsLimit int

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "Inspect past selection runs",
	Long: `List past run reports from the run-history store, or fetch one by ID.

Requires server.store_dir in the configuration; history is written by
'tia serve' when persistence is enabled.

Examples:
  tia runs
  tia runs --limit 5
  tia runs 2f1c9c0a-6a1b-4c9e-9f57-1d2b3c4d5e6f`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 0,
		"Maximum runs to list (default from config)")

	rootCmd.AddCommand(runsCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runRuns(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadEngineConfig()
	if err != nil {
		outputError("Failed to load configuration", err)
		os.Exit(ExitError)
	}

	dir := storePath(cfg)
	if dir == "" {
		outputError("Run history is not configured",
			fmt.Errorf("set server.store_dir in %s", config.DefaultFileName))
		os.Exit(ExitError)
	}

	storeCfg := runstore.DefaultConfig(dir)
	storeCfg.Logger = newCLILogger()
	store, err := runstore.Open(storeCfg)
	if err != nil {
		outputError("Failed to open the run store", err)
		os.Exit(ExitError)
	}
	defer store.Close()

	if len(args) == 1 {
		showRun(ctx, store, args[0])
		return
	}
	listRuns(ctx, store, cfg)
}

// showRun prints one report. Reports are structured data; a single
// run is always printed as JSON.
func showRun(ctx context.Context, store *runstore.Store, runID string) {
	report, err := store.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			outputError("Run not found: "+runID, nil)
		} else {
			outputError("Failed to load the run", err)
		}
		store.Close()
		os.Exit(ExitError)
	}
	outputJSON(report)
}

// listRuns prints the recent run history, newest first.
func listRuns(ctx context.Context, store *runstore.Store, cfg config.Config) {
	limit := runsLimit
	if limit <= 0 {
		limit = cfg.Server.StoreLimit
	}

	runs, err := store.List(ctx, limit)
	if err != nil {
		outputError("Failed to list runs", err)
		store.Close()
		os.Exit(ExitError)
	}

	if wantJSON() {
		outputJSON(runs)
		return
	}

	if len(runs) == 0 {
		ux.Info("no recorded runs")
		return
	}

	ux.Title(fmt.Sprintf("Last %d runs", len(runs)))
	for _, r := range runs {
		ux.FileLine(r.RunID, ux.IconBullet, describeRun(r))
	}
}

// describeRun summarizes a report for the run listing.
func describeRun(r *selector.Report) string {
	when := time.UnixMilli(r.StartedAtMilli).Format("2006-01-02 15:04:05")
	if r.SelectAll {
		return fmt.Sprintf("%s, all %d tests (%s)", when, len(r.AffectedTests), r.SelectAllReason)
	}
	return fmt.Sprintf("%s, %d seeds -> %d tests", when, len(r.Seeds), len(r.AffectedTests))
}
