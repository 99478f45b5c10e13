// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/observability"
)

// emitFunc delivers one progress event. Emission is fire-and-forget;
// implementations log failures and never return them.
type emitFunc func(event datatypes.ProgressEvent)

// contentSource produces the accumulated model output for one run,
// emitting progress along the way. Two variants exist: a chunked stream
// reader and a whole-document fetch. The provider selector picks one per
// run; the rest of the pipeline never branches on the shape again.
type contentSource interface {
	Accumulate(ctx context.Context, emit emitFunc) (string, error)
}

// =============================================================================
// Streaming Source
// =============================================================================

const (
	// defaultMaxChunkFailures is the consecutive-failure budget for
	// fragments that do not parse. Overridable via configuration.
	defaultMaxChunkFailures = 5

	// progressCharInterval is the accumulator growth between running
	// progress updates.
	progressCharInterval = 1000

	// slowChunkGap is the inter-chunk delay that triggers an
	// informational progress message. Not a failure.
	slowChunkGap = 5 * time.Second
)

// streamSource consumes a chunked SSE completion stream.
//
// # Description
//
// Reads the provider body line by line. Lines prefixed "data: " carry
// either the [DONE] sentinel (ignored) or a JSON fragment. Fragments are
// parsed defensively: one failure is logged and skipped; more than
// maxChunkFailures failures in immediate succession with no successful
// fragment in between abort the run with ErrStreamBroken. Delta text is
// appended to the accumulator; a complete message replaces it wholesale
// and stops reading, which covers a non-chunked provider answering on a
// streaming endpoint.
//
// A running progress event is emitted whenever the accumulator crosses a
// 1000-character boundary, and an informational message is emitted when
// more than five seconds pass between chunks.
type streamSource struct {
	body             io.ReadCloser
	maxChunkFailures int

	// now is the consumer's clock. Injectable for gap-detection tests.
	now func() time.Time
}

func newStreamSource(body io.ReadCloser, maxChunkFailures int) *streamSource {
	if maxChunkFailures <= 0 {
		maxChunkFailures = defaultMaxChunkFailures
	}
	return &streamSource{
		body:             body,
		maxChunkFailures: maxChunkFailures,
		now:              time.Now,
	}
}

// streamFragment is one parsed SSE data fragment. Delta carries
// incremental text; Message carries a complete answer.
type streamFragment struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (s *streamSource) Accumulate(ctx context.Context, emit emitFunc) (string, error) {
	if s.body == nil {
		return "", ErrEmptyStream
	}
	defer s.body.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var acc strings.Builder
	consecutiveFailures := 0
	lastProgressMark := 0
	lastChunkAt := s.now()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line := scanner.Text()

		gap := s.now().Sub(lastChunkAt)
		if gap > slowChunkGap {
			slog.Warn("long delay between stream chunks", "gap_ms", gap.Milliseconds())
			emit(datatypes.ProgressEvent{
				Step:    datatypes.StepContentGeneration,
				Status:  datatypes.StatusRunning,
				Message: fmt.Sprintf("Processing... (%ds delay)", int(gap.Seconds())),
			})
		}
		lastChunkAt = s.now()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			continue
		}

		var fragment streamFragment
		if err := json.Unmarshal([]byte(data), &fragment); err != nil {
			consecutiveFailures++
			if m := observability.DefaultMetrics; m != nil {
				m.RecordChunkParseFailure()
			}
			slog.Warn("failed to parse stream fragment",
				"error", err,
				"consecutive_failures", consecutiveFailures,
				"preview", preview(data, 100),
			)
			if consecutiveFailures > s.maxChunkFailures {
				return "", fmt.Errorf("%d consecutive fragment failures: %w",
					consecutiveFailures, ErrStreamBroken)
			}
			continue
		}
		consecutiveFailures = 0

		if len(fragment.Choices) == 0 {
			continue
		}
		choice := fragment.Choices[0]

		// A complete message means the provider did not actually chunk
		// the answer. Take it wholesale and stop reading.
		if choice.Message != nil && choice.Message.Content != "" {
			slog.Debug("received complete message on stream, replacing accumulator",
				"chars", len(choice.Message.Content))
			return choice.Message.Content, nil
		}

		if choice.Delta.Content == "" {
			continue
		}
		acc.WriteString(choice.Delta.Content)

		if mark := acc.Len() / progressCharInterval; mark > lastProgressMark {
			lastProgressMark = mark
			text := acc.String()
			emit(datatypes.ProgressEvent{
				Step:   datatypes.StepContentGeneration,
				Status: datatypes.StatusRunning,
				Message: fmt.Sprintf("Generated %d characters (%d words)...",
					len(text), len(strings.Fields(text))),
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading provider stream: %w", err)
	}

	slog.Debug("streaming complete", "chars", acc.Len())
	return acc.String(), nil
}

// =============================================================================
// Whole-Document Source
// =============================================================================

// documentSource wraps a blocking whole-document completion. No
// incremental progress is possible, so a single running event announces
// the connection before the call blocks.
type documentSource struct {
	fetch func(ctx context.Context) (string, error)
}

func (d *documentSource) Accumulate(ctx context.Context, emit emitFunc) (string, error) {
	emit(datatypes.ProgressEvent{
		Step:    datatypes.StepContentGeneration,
		Status:  datatypes.StatusRunning,
		Message: "Connected to research provider, generating long-form content...",
	})
	return d.fetch(ctx)
}

// preview truncates s for log output, never splitting a rune.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var (
	_ contentSource = (*streamSource)(nil)
	_ contentSource = (*documentSource)(nil)
)
