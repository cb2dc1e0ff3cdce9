// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the selection engine over HTTP.
//
// The API is stateless by design: every select and graph request scans
// the project and builds a fresh dependency graph, so responses always
// reflect the tree on disk. The only persistent state is the optional
// run-history store, and past reports are never inputs to analysis.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/services/engine/config"
	"github.com/AleutianAI/tia/services/engine/runstore"
	"github.com/AleutianAI/tia/services/engine/selector"
	"github.com/AleutianAI/tia/services/engine/telemetry"
)

// shutdownGrace bounds how long in-flight requests get to finish once
// the serve context is cancelled.
const shutdownGrace = 5 * time.Second

// Server is the tia serve HTTP server.
type Server struct {
	cfg          config.Config
	log          *logging.Logger
	engine       *gin.Engine
	storeEnabled bool
}

// New assembles the server around a selector and an optional run store.
//
// Inputs:
//
//	cfg - full engine configuration; cfg.Server.Addr is the bind address
//	sel - the selection pipeline, required
//	store - run history store, nil to disable persistence
//	log - structured logger, nil for the default
func New(cfg config.Config, sel *selector.Selector, store *runstore.Store, log *logging.Logger) (*Server, error) {
	if sel == nil {
		return nil, ErrNilSelector
	}
	if log == nil {
		log = logging.Default()
	}

	handlers := NewHandlers(sel, store, cfg, log)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("tia-serve"))

	v1 := engine.Group("/v1")
	RegisterRoutes(v1, handlers)

	engine.GET("/healthz", handlers.HandleHealth)
	engine.GET("/metrics", metricsEndpoint())

	return &Server{cfg: cfg, log: log, engine: engine, storeEnabled: store != nil}, nil
}

// Router returns the underlying gin engine, primarily for tests.
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Run serves until the context is cancelled, then drains in-flight
// requests before returning. A nil error means a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.log.Info("serve listening",
		"addr", s.cfg.Server.Addr,
		"root", s.cfg.Root,
		"store_enabled", s.storeEnabled)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", s.cfg.Server.Addr, err)
		}
		return nil
	case <-ctx.Done():
		s.log.Info("serve shutting down", "grace", shutdownGrace.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("draining server: %w", err)
		}
		return <-errCh
	}
}

// metricsEndpoint serves the Prometheus scrape handler when the
// metrics exporter is enabled. The lookup happens per request so route
// registration does not depend on telemetry bootstrap ordering.
func metricsEndpoint() gin.HandlerFunc {
	return func(c *gin.Context) {
		mh := telemetry.MetricsHandler()
		if mh == nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "metrics exporter is not enabled",
				Code:  "METRICS_DISABLED",
			})
			return
		}
		mh.ServeHTTP(c.Writer, c.Request)
	}
}
