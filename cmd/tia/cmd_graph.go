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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tia/services/engine/graph"
	"github.com/AleutianAI/tia/services/engine/selector"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	graphFile      string
	graphDirection string
)

// Direction values for --direction.
const (
	directionBoth       = ""
	directionDeps       = "deps"
	directionDependents = "dependents"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Dump the module dependency graph",
	Long: `Build the module dependency graph and dump it as JSON.

The dump is deterministic: files are sorted and every adjacency list
is sorted, so two runs over the same tree produce identical output.

Examples:
  tia graph                                      # whole graph
  tia graph --file app/models.py                 # one file, both directions
  tia graph --file app/models.py --direction dependents
  tia graph | jq '.files[] | select(.dependents)'`,
	Args: cobra.NoArgs,
	Run:  runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&graphFile, "file", "",
		"Limit the dump to one file's adjacency")
	graphCmd.Flags().StringVar(&graphDirection, "direction", directionBoth,
		"With --file: 'deps' or 'dependents' only")

	rootCmd.AddCommand(graphCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runGraph(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch graphDirection {
	case directionBoth, directionDeps, directionDependents:
	default:
		outputError("Invalid --direction; use 'deps' or 'dependents'", nil)
		os.Exit(ExitError)
	}

	cfg, err := loadEngineConfig()
	if err != nil {
		outputError("Failed to load configuration", err)
		os.Exit(ExitError)
	}

	sel, err := selector.New(cfg, newCLILogger())
	if err != nil {
		outputError("Failed to initialize the selection engine", err)
		os.Exit(ExitError)
	}

	build, err := sel.BuildGraph(ctx)
	if err != nil {
		outputError("Failed to build the dependency graph", err)
		os.Exit(ExitError)
	}

	if graphFile == "" {
		outputJSON(build.Graph.Dump())
		os.Exit(ExitSuccess)
	}

	entry, err := build.Graph.Entry(graphFile)
	if err != nil {
		if errors.Is(err, graph.ErrUnknownFile) {
			outputError("File is not in the dependency graph: "+graphFile, nil)
		} else {
			outputError("Graph lookup failed", err)
		}
		os.Exit(ExitError)
	}

	switch graphDirection {
	case directionDeps:
		entry.Dependents = nil
	case directionDependents:
		entry.Dependencies = nil
	}
	outputJSON(entry)
	os.Exit(ExitSuccess)
}
