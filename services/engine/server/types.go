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

import "github.com/AleutianAI/tia/services/engine/selector"

// ServiceVersion is the tia serve API version.
const ServiceVersion = "1.0.0"

// SelectRequest is the request body for POST /v1/select.
type SelectRequest struct {
	// Seeds are changed files as root-relative slash paths.
	Seeds []string `json:"seeds"`

	// All bypasses analysis and selects every test.
	All bool `json:"all"`

	// Reason annotates a forced select-all in the report.
	Reason string `json:"reason,omitempty"`
}

// RunListResponse is the response for GET /v1/runs.
type RunListResponse struct {
	// Runs are past run reports, newest first.
	Runs []*selector.Report `json:"runs"`

	// Count is len(Runs), for clients that skip decoding the list.
	Count int `json:"count"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`

	// StoreEnabled reports whether run history persistence is on.
	StoreEnabled bool `json:"store_enabled"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}
