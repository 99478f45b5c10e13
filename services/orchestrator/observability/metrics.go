// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring blog generation
// runs. Metrics include:
//   - Request counters (by status and error type)
//   - Pipeline step duration histograms
//   - Stream health (chunk parse failures, keepalives, disconnects)
//   - Image generation outcomes
//   - Rate limit rejections
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "theailab"

// Subsystem for generation metrics
const generationSubsystem = "generation"

// GenerationMetrics holds all Prometheus metrics for blog generation runs.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring pipeline
// performance and stream health. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type GenerationMetrics struct {
	// RequestsTotal counts generation requests by final status.
	// Labels: status (success, error)
	RequestsTotal *prometheus.CounterVec

	// StepDurationSeconds measures per-step pipeline durations.
	// Labels: step (setup, web_search, content_generation, ...)
	StepDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open SSE connections.
	ActiveStreams prometheus.Gauge

	// ErrorsTotal counts failed runs by error type.
	// Labels: error_code (validation, auth, rate_limit, config, ...)
	ErrorsTotal *prometheus.CounterVec

	// ChunkParseFailuresTotal counts provider stream fragments that did
	// not parse. A high rate without matching errors means the failure
	// budget is absorbing noise.
	ChunkParseFailuresTotal prometheus.Counter

	// ImagesGeneratedTotal counts generated images by outcome.
	// Labels: outcome (generated, missing)
	ImagesGeneratedTotal *prometheus.CounterVec

	// RateLimitRejectionsTotal counts requests refused by the limiter.
	RateLimitRejectionsTotal prometheus.Counter

	// KeepAlivesTotal counts keepalive pings sent.
	KeepAlivesTotal prometheus.Counter

	// ClientDisconnectsTotal counts client disconnections mid-run.
	ClientDisconnectsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of GenerationMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GenerationMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after Prometheus registry is available.
//
// # Outputs
//
//   - *GenerationMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *GenerationMetrics {
	DefaultMetrics = &GenerationMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "requests_total",
				Help:      "Total generation requests by final status",
			},
			[]string{"status"},
		),

		StepDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "step_duration_seconds",
				Help:      "Pipeline step duration in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"step"},
		),

		ActiveStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open generation streams",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "errors_total",
				Help:      "Total failed generation runs by error type",
			},
			[]string{"error_code"},
		),

		ChunkParseFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "chunk_parse_failures_total",
				Help:      "Total provider stream fragments that failed to parse",
			},
		),

		ImagesGeneratedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "images_total",
				Help:      "Total images by outcome",
			},
			[]string{"outcome"},
		),

		RateLimitRejectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "rate_limit_rejections_total",
				Help:      "Total requests refused by the rate limiter",
			},
		),

		KeepAlivesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "keepalives_total",
				Help:      "Total keepalive pings sent",
			},
		),

		ClientDisconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: generationSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total client disconnections during generation",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeAuth indicates a failed authentication or authorization check.
	ErrorCodeAuth ErrorCode = "auth"

	// ErrorCodeRateLimit indicates refusal by the rate limiter.
	ErrorCodeRateLimit ErrorCode = "rate_limit"

	// ErrorCodeConfig indicates a missing provider credential.
	ErrorCodeConfig ErrorCode = "config"

	// ErrorCodeProvider indicates an upstream provider API failure.
	ErrorCodeProvider ErrorCode = "provider"

	// ErrorCodeTransport indicates a broken provider stream.
	ErrorCodeTransport ErrorCode = "transport"

	// ErrorCodeInternal indicates internal server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed generation request.
//
// # Inputs
//
//   - success: Whether the run produced a terminal final_result.
func (m *GenerationMetrics) RecordRequest(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(status).Inc()
}

// RecordError records a failed run.
//
// # Inputs
//
//   - code: The error type code.
func (m *GenerationMetrics) RecordError(code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(code)).Inc()
}

// RecordStepDuration records one pipeline step's elapsed time.
//
// # Inputs
//
//   - step: The pipeline step name.
//   - seconds: Elapsed time in seconds.
func (m *GenerationMetrics) RecordStepDuration(step string, seconds float64) {
	m.StepDurationSeconds.WithLabelValues(step).Observe(seconds)
}

// StreamStarted increments the active streams gauge.
func (m *GenerationMetrics) StreamStarted() {
	m.ActiveStreams.Inc()
}

// StreamEnded decrements the active streams gauge.
func (m *GenerationMetrics) StreamEnded() {
	m.ActiveStreams.Dec()
}

// RecordChunkParseFailure increments the fragment parse failure counter.
func (m *GenerationMetrics) RecordChunkParseFailure() {
	m.ChunkParseFailuresTotal.Inc()
}

// RecordImages records the outcome of one image generation stage.
//
// # Inputs
//
//   - generated: Number of images actually produced.
//   - requested: Number of images the stage asked for.
func (m *GenerationMetrics) RecordImages(generated, requested int) {
	m.ImagesGeneratedTotal.WithLabelValues("generated").Add(float64(generated))
	if missing := requested - generated; missing > 0 {
		m.ImagesGeneratedTotal.WithLabelValues("missing").Add(float64(missing))
	}
}

// RecordRateLimitRejection increments the rate limit rejection counter.
func (m *GenerationMetrics) RecordRateLimitRejection() {
	m.RateLimitRejectionsTotal.Inc()
}

// RecordKeepAlive increments the keepalive counter.
func (m *GenerationMetrics) RecordKeepAlive() {
	m.KeepAlivesTotal.Inc()
}

// RecordClientDisconnect increments the client disconnect counter.
func (m *GenerationMetrics) RecordClientDisconnect() {
	m.ClientDisconnectsTotal.Inc()
}
