// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/services/engine/config"
	"github.com/AleutianAI/tia/services/engine/graph"
	"github.com/AleutianAI/tia/services/engine/runstore"
	"github.com/AleutianAI/tia/services/engine/selector"
)

// Handlers contains the HTTP handlers for the selection API.
type Handlers struct {
	sel   *selector.Selector
	store *runstore.Store
	cfg   config.Config
	log   *logging.Logger
}

// NewHandlers creates handlers around a selector. The store may be nil;
// run-history endpoints then answer 503 and select results are not
// persisted.
func NewHandlers(sel *selector.Selector, store *runstore.Store, cfg config.Config, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.Default()
	}
	return &Handlers{sel: sel, store: store, cfg: cfg, log: log}
}

// HandleSelect handles POST /v1/select.
//
// Description:
//
//	Runs one selection pass over the request seeds and returns the run
//	report. The dependency graph is built fresh for every call. When a
//	run store is configured the report is persisted before returning;
//	a persistence failure is logged but does not fail the request.
//
// Request Body:
//
//	SelectRequest
//
// Response:
//
//	200 OK: selector.Report
//	400 Bad Request: malformed body
//	500 Internal Server Error: scan or analysis failure
func (h *Handlers) HandleSelect(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleSelect")

	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	report, err := h.sel.Select(c.Request.Context(), selector.Request{
		Seeds:          req.Seeds,
		ForceAll:       req.All,
		ForceAllReason: req.Reason,
	})
	if err != nil {
		logger.Error("selection failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "SELECT_FAILED",
		})
		return
	}

	if h.store != nil {
		if err := h.store.Put(c.Request.Context(), report); err != nil {
			logger.Warn("persisting run report", "run_id", report.RunID, "error", err)
		}
	}

	logger.Info("selection complete",
		"run_id", report.RunID,
		"seeds", len(report.Seeds),
		"affected_tests", len(report.AffectedTests))
	c.JSON(http.StatusOK, report)
}

// HandleGraph handles GET /v1/graph.
//
// Description:
//
//	Builds the dependency graph and returns its deterministic dump:
//	files sorted, each adjacency list sorted.
//
// Response:
//
//	200 OK: graph.Dump
//	500 Internal Server Error: scan failure
func (h *Handlers) HandleGraph(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleGraph")

	build, err := h.sel.BuildGraph(c.Request.Context())
	if err != nil {
		logger.Error("graph build failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "GRAPH_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, build.Graph.Dump())
}

// HandleGraphDeps handles GET /v1/graph/deps.
//
// Query Parameters:
//
//	file: root-relative path to look up (required)
//
// Response:
//
//	200 OK: graph.FileEntry with dependencies only
//	400 Bad Request: missing file parameter
//	404 Not Found: path is not a graph node
func (h *Handlers) HandleGraphDeps(c *gin.Context) {
	h.graphEntry(c, "HandleGraphDeps", func(e *graph.FileEntry) {
		e.Dependents = nil
	})
}

// HandleGraphDependents handles GET /v1/graph/dependents.
//
// Query Parameters:
//
//	file: root-relative path to look up (required)
//
// Response:
//
//	200 OK: graph.FileEntry with dependents only
//	400 Bad Request: missing file parameter
//	404 Not Found: path is not a graph node
func (h *Handlers) HandleGraphDependents(c *gin.Context) {
	h.graphEntry(c, "HandleGraphDependents", func(e *graph.FileEntry) {
		e.Dependencies = nil
	})
}

// graphEntry is the shared lookup behind the two directional graph
// endpoints. The trim callback drops the direction the endpoint does
// not advertise.
func (h *Handlers) graphEntry(c *gin.Context, handler string, trim func(*graph.FileEntry)) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", handler)

	file := c.Query("file")
	if file == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file query parameter is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	build, err := h.sel.BuildGraph(c.Request.Context())
	if err != nil {
		logger.Error("graph build failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "GRAPH_FAILED",
		})
		return
	}

	entry, err := build.Graph.Entry(file)
	if err != nil {
		if errors.Is(err, graph.ErrUnknownFile) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "file is not in the dependency graph: " + file,
				Code:  "UNKNOWN_FILE",
			})
			return
		}
		logger.Error("graph lookup failed", "file", file, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "GRAPH_FAILED",
		})
		return
	}

	trim(entry)
	c.JSON(http.StatusOK, entry)
}

// HandleListRuns handles GET /v1/runs.
//
// Query Parameters:
//
//	limit: maximum number of reports (optional, default from config)
//
// Response:
//
//	200 OK: RunListResponse, newest first
//	503 Service Unavailable: run store not configured
func (h *Handlers) HandleListRuns(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleListRuns")

	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "run history requires a store_dir in the server configuration",
			Code:  "STORE_NOT_CONFIGURED",
		})
		return
	}

	limit := h.cfg.Server.StoreLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be a positive integer",
				Code:  "INVALID_REQUEST",
			})
			return
		}
		limit = parsed
	}

	runs, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		logger.Error("listing runs failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "STORE_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, RunListResponse{Runs: runs, Count: len(runs)})
}

// HandleGetRun handles GET /v1/runs/:id.
//
// Response:
//
//	200 OK: selector.Report
//	404 Not Found: no run with that ID
//	503 Service Unavailable: run store not configured
func (h *Handlers) HandleGetRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.log.With("request_id", requestID, "handler", "HandleGetRun")

	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "run history requires a store_dir in the server configuration",
			Code:  "STORE_NOT_CONFIGURED",
		})
		return
	}

	runID := c.Param("id")
	report, err := h.store.Get(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "run not found: " + runID,
				Code:  "RUN_NOT_FOUND",
			})
			return
		}
		logger.Error("loading run failed", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "STORE_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		Version:      ServiceVersion,
		StoreEnabled: h.store != nil,
	})
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
