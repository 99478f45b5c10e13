// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/observability"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing generation frames to HTTP
// responses.
//
// # Description
//
// SSEWriter abstracts frame serialization and writing, enabling
// testability and separation from HTTP response mechanics. Every frame is
// data-only SSE wire format:
//
//	data: {json}\n\n
//
// No event-type lines and no ids; clients parse the JSON payload to tell
// progress frames from the terminal frame.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The keepalive ticker
// and the pipeline emit from different goroutines.
//
// # Limitations
//
//   - Must be used with http.Flusher-compatible ResponseWriter
//   - Response headers must be set before first write
//
// # Assumptions
//
//   - Caller has set Content-Type: text/event-stream before writing
//   - Caller has disabled buffering (X-Accel-Buffering: no)
type SSEWriter interface {
	// WriteProgress writes one progress frame.
	//
	// # Inputs
	//
	//   - event: Progress event to serialize and send.
	//
	// # Outputs
	//
	//   - error: Non-nil if JSON marshaling or writing failed.
	WriteProgress(event datatypes.ProgressEvent) error

	// WriteFinal writes the terminal final_result frame.
	//
	// # Description
	//
	// Wraps the payload in the final_result envelope. Must be the last
	// frame written on a successful run.
	//
	// # Inputs
	//
	//   - data: The completed post plus derived counters.
	//
	// # Outputs
	//
	//   - error: Non-nil if writing failed.
	WriteFinal(data datatypes.FinalResultData) error

	// WriteError writes the terminal error frame.
	//
	// # Description
	//
	// Emits a single frame with step "error" and status "error". Must be
	// the last frame written on a failed run; a run never gets both a
	// final_result and an error terminal.
	//
	// # Inputs
	//
	//   - message: Error message for the client (sanitized, no internal details)
	//
	// # Outputs
	//
	//   - error: Non-nil if writing failed.
	WriteError(message string) error

	// WriteKeepAlive sends a comment line to prevent connection timeouts.
	//
	// # Description
	//
	// Sends an SSE comment (": ping\n\n") to keep the connection alive
	// during long provider calls. SSE comments are ignored by clients but
	// keep the TCP connection active, preventing timeout disconnections
	// from load balancers (AWS ALB, Nginx default 60s).
	//
	// # Outputs
	//
	//   - error: Non-nil if writing failed.
	WriteKeepAlive() error
}

// =============================================================================
// Struct Definition
// =============================================================================

// sseWriter implements SSEWriter for HTTP SSE responses.
//
// # Fields
//
//   - writer: Underlying http.ResponseWriter
//   - flusher: http.Flusher interface for immediate send
//   - mu: Mutex for thread-safe writes
//
// # Thread Safety
//
// Thread-safe via mutex. The keepalive goroutine and the pipeline can
// write concurrently; frames never interleave mid-write.
//
// # Limitations
//
//   - Cannot be reused across requests
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// =============================================================================
// Constructor
// =============================================================================

// NewSSEWriter creates a new SSEWriter for the given ResponseWriter.
//
// # Inputs
//
//   - w: HTTP ResponseWriter. Must implement http.Flusher.
//
// # Outputs
//
//   - SSEWriter: Ready to write frames.
//   - error: Non-nil if ResponseWriter doesn't support flushing.
//
// # Examples
//
//	SetSSEHeaders(w)
//	writer, err := NewSSEWriter(w)
//	if err != nil {
//	    http.Error(w, "Streaming not supported", http.StatusInternalServerError)
//	    return
//	}
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &sseWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

// writeFrame serializes v and writes one data-only SSE frame.
func (w *sseWriter) writeFrame(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// WriteProgress writes one progress frame.
func (w *sseWriter) WriteProgress(event datatypes.ProgressEvent) error {
	return w.writeFrame(event)
}

// WriteFinal writes the terminal final_result frame.
func (w *sseWriter) WriteFinal(data datatypes.FinalResultData) error {
	return w.writeFrame(datatypes.FinalResult{
		Type: datatypes.FinalResultType,
		Data: data,
	})
}

// WriteError writes the terminal error frame.
func (w *sseWriter) WriteError(message string) error {
	return w.writeFrame(datatypes.ProgressEvent{
		Step:    datatypes.StepError,
		Status:  datatypes.StatusError,
		Message: message,
	})
}

// WriteKeepAlive sends a comment line to keep the connection alive.
func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// SSE comment format: colon followed by text, then double newline
	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}

	w.flusher.Flush()
	if m := observability.DefaultMetrics; m != nil {
		m.RecordKeepAlive()
	}
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// # Description
//
// Sets the required headers for Server-Sent Events:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
//
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEWriter = (*sseWriter)(nil)
