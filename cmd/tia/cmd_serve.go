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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tia/services/engine/runstore"
	"github.com/AleutianAI/tia/services/engine/selector"
	"github.com/AleutianAI/tia/services/engine/server"
	"github.com/AleutianAI/tia/services/engine/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	serveAddr     string
	serveStoreDir string
)

// telemetryShutdownGrace bounds the exporter flush on shutdown.
const telemetryShutdownGrace = 5 * time.Second

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the selection engine over HTTP",
	Long: `Run the selection engine as an HTTP service.

Endpoints:
  POST /v1/select            Select affected tests for posted seeds
  GET  /v1/graph             Dump the dependency graph
  GET  /v1/graph/deps        One file's dependencies
  GET  /v1/graph/dependents  One file's dependents
  GET  /v1/runs              List past run reports
  GET  /v1/runs/:id          Fetch one run report
  GET  /healthz              Health check
  GET  /metrics              Prometheus metrics

Run history is persisted when server.store_dir is configured (or
--store-dir is passed); without it the run endpoints answer 503.

Examples:
  tia serve
  tia serve --addr :9000 --store-dir .tia/runs`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (default from config: :8775)")
	serveCmd.Flags().StringVar(&serveStoreDir, "store-dir", "",
		"Run-history directory (default from config; empty disables persistence)")

	rootCmd.AddCommand(serveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadEngineConfig()
	if err != nil {
		outputError("Failed to load configuration", err)
		os.Exit(ExitError)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveStoreDir != "" {
		cfg.Server.StoreDir = serveStoreDir
	}

	log := newCLILogger()

	shutdown, err := telemetry.Init(ctx, telemetry.ServeConfig())
	if err != nil {
		outputError("Failed to initialize telemetry", err)
		os.Exit(ExitError)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownGrace)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	sel, err := selector.New(cfg, log)
	if err != nil {
		outputError("Failed to initialize the selection engine", err)
		os.Exit(ExitError)
	}

	var store *runstore.Store
	if dir := storePath(cfg); dir != "" {
		storeCfg := runstore.DefaultConfig(dir)
		storeCfg.Logger = log
		store, err = runstore.Open(storeCfg)
		if err != nil {
			outputError("Failed to open the run store", err)
			os.Exit(ExitError)
		}
		defer store.Close()
	}

	srv, err := server.New(cfg, sel, store, log)
	if err != nil {
		outputError("Failed to build the server", err)
		os.Exit(ExitError)
	}

	if err := srv.Run(ctx); err != nil {
		outputError("Server failed", err)
		if store != nil {
			store.Close()
		}
		os.Exit(ExitError)
	}
}
