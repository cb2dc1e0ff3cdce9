// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for extraction.
var meter = otel.Meter("tia.extract")

// Metrics for extraction operations.
var (
	extractLatency metric.Float64Histogram
	extractTotal   metric.Int64Counter
	refsExtracted  metric.Int64Histogram
	cacheLookups   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		extractLatency, err = meter.Float64Histogram(
			"tia_extract_duration_seconds",
			metric.WithDescription("Duration of import extraction per file"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractTotal, err = meter.Int64Counter(
			"tia_extract_total",
			metric.WithDescription("Total number of extraction operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		refsExtracted, err = meter.Int64Histogram(
			"tia_extract_refs",
			metric.WithDescription("Import references extracted per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheLookups, err = meter.Int64Counter(
			"tia_extract_cache_lookups_total",
			metric.WithDescription("Extraction cache lookups by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordExtractMetrics records metrics for one extraction.
func recordExtractMetrics(ctx context.Context, language string, duration time.Duration, refCount int, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)

	extractLatency.Record(ctx, duration.Seconds(), attrs)
	extractTotal.Add(ctx, 1, attrs)

	if success {
		refsExtracted.Record(ctx, int64(refCount),
			metric.WithAttributes(attribute.String("language", language)),
		)
	}
}

// recordCacheLookup records a cache hit or miss.
func recordCacheLookup(ctx context.Context, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}
