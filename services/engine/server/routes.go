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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all selection API routes with the router.
//
// Description:
//
//	Registers all /v1/* endpoints with the given Gin router group. The
//	router group should already have any required middleware applied.
//
// Selection Endpoints:
//
//	POST /v1/select - Select affected tests for a set of changed files
//
// Graph Endpoints:
//
//	GET  /v1/graph - Dump the full dependency graph
//	GET  /v1/graph/deps - Direct dependencies of one file
//	GET  /v1/graph/dependents - Direct dependents of one file
//
// Run History Endpoints:
//
//	GET  /v1/runs - List past run reports, newest first
//	GET  /v1/runs/:id - Fetch one run report by ID
//
// Example:
//
//	handlers := server.NewHandlers(sel, store, cfg, log)
//
//	v1 := router.Group("/v1")
//	server.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	// Selection
	rg.POST("/select", handlers.HandleSelect)

	// Graph queries
	graphGroup := rg.Group("/graph")
	{
		graphGroup.GET("", handlers.HandleGraph)
		graphGroup.GET("/deps", handlers.HandleGraphDeps)
		graphGroup.GET("/dependents", handlers.HandleGraphDependents)
	}

	// Run history
	runs := rg.Group("/runs")
	{
		runs.GET("", handlers.HandleListRuns)
		runs.GET("/:id", handlers.HandleGetRun)
	}
}
