// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package selector

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for selection runs.
var (
	tracer = otel.Tracer("tia.selector")
	meter  = otel.Meter("tia.selector")
)

// Metrics for selection runs.
var (
	selectLatency metric.Float64Histogram
	selectTotal   metric.Int64Counter
	affectedTests metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		selectLatency, err = meter.Float64Histogram(
			"tia_select_duration_seconds",
			metric.WithDescription("Duration of selection runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		selectTotal, err = meter.Int64Counter(
			"tia_select_total",
			metric.WithDescription("Total number of selection runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		affectedTests, err = meter.Int64Histogram(
			"tia_select_affected_tests",
			metric.WithDescription("Affected tests selected per run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordSelectMetrics records metrics for one selection run.
func recordSelectMetrics(ctx context.Context, duration time.Duration, affected int, selectAll bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(attribute.Bool("select_all", selectAll))
	selectLatency.Record(ctx, duration.Seconds(), attrs)
	selectTotal.Add(ctx, 1, attrs)
	affectedTests.Record(ctx, int64(affected), attrs)
}

// startSelectSpan creates the span covering a whole selection run.
func startSelectSpan(ctx context.Context, seedCount int, forceAll bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Selector.Select",
		trace.WithAttributes(
			attribute.Int("tia.seed_count", seedCount),
			attribute.Bool("tia.force_all", forceAll),
		),
	)
}

// setSelectSpanResult sets result attributes on a selection span.
func setSelectSpanResult(span trace.Span, affected, parseFailures int) {
	span.SetAttributes(
		attribute.Int("tia.affected_tests", affected),
		attribute.Int("tia.parse_failures", parseFailures),
	)
}

// startBuildSpan creates the span covering graph assembly.
func startBuildSpan(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Selector.BuildGraph")
}
