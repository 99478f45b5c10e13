// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline drives one blog generation run per request.
//
// # Description
//
// The pipeline walks five stages in order: setup, web_search,
// content_generation, image_generation, finalization. Each stage is
// bracketed by starting and completed (or error) progress events carrying
// elapsed duration. Unrecoverable failures exit sideways: the stage emits
// its error event and the run returns an error the handler converts into
// the terminal error frame. Image enrichment and result extraction
// failures are contained and degrade the result instead.
//
// # Provider Policy
//
// Web search requested and a search credential configured: the
// search-augmented provider answers with one complete document. Otherwise
// the plain completion provider streams, with a JSON-object response
// directive. Web search requested without a search credential is a
// configuration error, distinct from having no completion credential.
//
// # Ordering
//
// Progress events are emitted strictly in pipeline order. The terminal
// final_result frame, when present, is always the last frame written.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Samcarr01/the-ai-lab/services/llm"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/observability"
)

var tracer = otel.Tracer("theailab.orchestrator.pipeline")

// ProgressSink receives the frames a run produces. The handler's SSE
// writer implements it.
type ProgressSink interface {
	WriteProgress(event datatypes.ProgressEvent) error
	WriteFinal(data datatypes.FinalResultData) error
}

// Runner is the pipeline contract consumed by the HTTP handler.
type Runner interface {
	Run(ctx context.Context, in RunInput, sink ProgressSink) (*datatypes.FinalResultData, error)
	SearchConfigured() bool
	CompletionConfigured() bool
}

// RunInput is one sanitized, validated generation request.
type RunInput struct {
	RequestID     string
	Prompt        string
	KnowledgeBase string
	WebSearch     bool
	Images        bool

	// Start is the request arrival time; total_duration is measured
	// from it.
	Start time.Time
}

// Pipeline holds the provider clients shared across runs. Safe for
// concurrent use; all per-run state lives on the stack of Run.
type Pipeline struct {
	search           llm.DocumentClient
	completion       llm.StreamClient
	images           llm.ImageClient
	maxChunkFailures int
}

// New creates a Pipeline. search and images may be nil when the matching
// credential is absent; completion may be nil only if every request will
// use web search.
func New(search llm.DocumentClient, completion llm.StreamClient, images llm.ImageClient, maxChunkFailures int) *Pipeline {
	return &Pipeline{
		search:           search,
		completion:       completion,
		images:           images,
		maxChunkFailures: maxChunkFailures,
	}
}

// SearchConfigured reports whether the search-augmented provider is
// available.
func (p *Pipeline) SearchConfigured() bool { return p.search != nil }

// CompletionConfigured reports whether the streaming completion provider
// is available.
func (p *Pipeline) CompletionConfigured() bool { return p.completion != nil }

// Run executes one generation run, writing progress and the terminal
// result to sink.
//
// On success the final_result frame has been written and its payload is
// returned for after-the-fact persistence. On error no terminal frame has
// been written; the caller owns the terminal error frame.
func (p *Pipeline) Run(ctx context.Context, in RunInput, sink ProgressSink) (*datatypes.FinalResultData, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("generation.request_id", in.RequestID),
		attribute.Bool("generation.web_search", in.WebSearch),
		attribute.Bool("generation.images", in.Images),
	)

	emit := func(event datatypes.ProgressEvent) {
		if err := sink.WriteProgress(event); err != nil {
			slog.Warn("failed to write progress frame",
				"request_id", in.RequestID,
				"step", event.Step,
				"error", err,
			)
		}
	}

	useSearch := in.WebSearch && p.search != nil
	if in.WebSearch && p.search == nil {
		span.SetStatus(codes.Error, ErrSearchKeyMissing.Error())
		return nil, ErrSearchKeyMissing
	}
	if !useSearch && p.completion == nil {
		span.SetStatus(codes.Error, ErrCompletionKeyMissing.Error())
		return nil, ErrCompletionKeyMissing
	}

	// Stage 1: setup.
	emit(datatypes.ProgressEvent{Step: datatypes.StepSetup, Status: datatypes.StatusStarting})
	setupStart := time.Now()
	systemPrompt := buildSystemPrompt(in.Prompt, in.KnowledgeBase, in.WebSearch)
	p.completeStep(emit, datatypes.StepSetup, setupStart, "")

	// Stage 2: web_search. The search call itself happens inside the
	// content stage; this step reports the routing decision.
	emit(datatypes.ProgressEvent{Step: datatypes.StepWebSearch, Status: datatypes.StatusStarting})
	searchStart := time.Now()
	if useSearch {
		p.completeStep(emit, datatypes.StepWebSearch, searchStart,
			"Will use Perplexity Sonar for fast web search")
	} else {
		p.completeStep(emit, datatypes.StepWebSearch, searchStart, "Skipped - disabled")
	}

	// Stage 3: content_generation.
	emit(datatypes.ProgressEvent{Step: datatypes.StepContentGeneration, Status: datatypes.StatusStarting})
	contentStart := time.Now()

	completionReq := llm.CompletionRequest{
		System:      systemPrompt,
		User:        in.Prompt,
		MaxTokens:   maxCompletionTokens,
		Temperature: completionTemperature,
	}

	var source contentSource
	if useSearch {
		source = &documentSource{fetch: func(ctx context.Context) (string, error) {
			return p.search.Complete(ctx, completionReq)
		}}
	} else {
		body, err := p.completion.CompleteStream(ctx, completionReq)
		if err != nil {
			return nil, p.failStep(emit, span, datatypes.StepContentGeneration, contentStart, err)
		}
		source = newStreamSource(body, p.maxChunkFailures)
		emit(datatypes.ProgressEvent{
			Step:    datatypes.StepContentGeneration,
			Status:  datatypes.StatusRunning,
			Message: "Generating comprehensive content...",
		})
	}

	raw, err := source.Accumulate(ctx, emit)
	if err != nil {
		return nil, p.failStep(emit, span, datatypes.StepContentGeneration, contentStart, err)
	}

	post, parsed := extractPost(raw, in.Prompt)
	if !parsed {
		slog.Warn("falling back to degraded post", "request_id", in.RequestID)
	}
	p.completeStep(emit, datatypes.StepContentGeneration, contentStart,
		fmt.Sprintf("Generated %d words of long-form content", wordCount(post.Content)))

	// Stage 4: image_generation. Failures are contained; the run always
	// continues to finalization.
	if in.Images {
		emit(datatypes.ProgressEvent{Step: datatypes.StepImageGeneration, Status: datatypes.StatusStarting})
		imageStart := time.Now()
		if enrichWithImages(ctx, post, p.images, emit) {
			p.completeStep(emit, datatypes.StepImageGeneration, imageStart,
				fmt.Sprintf("Generated %d images with proper placement", len(post.GeneratedImages)))
		} else {
			emit(datatypes.ProgressEvent{
				Step:     datatypes.StepImageGeneration,
				Status:   datatypes.StatusError,
				Duration: time.Since(imageStart).Milliseconds(),
				Message:  "Image generation failed",
			})
			post.GeneratedImages = []datatypes.GeneratedImage{}
		}
	} else {
		emit(datatypes.ProgressEvent{
			Step:     datatypes.StepImageGeneration,
			Status:   datatypes.StatusCompleted,
			Duration: 0,
			Message:  "Skipped - disabled",
		})
	}

	// Stage 5: finalization.
	emit(datatypes.ProgressEvent{Step: datatypes.StepFinalization, Status: datatypes.StatusStarting})
	finalStart := time.Now()
	data := finalizePost(post, in.Start)
	p.completeStep(emit, datatypes.StepFinalization, finalStart, "")

	if err := sink.WriteFinal(data); err != nil {
		slog.Error("failed to write terminal frame",
			"request_id", in.RequestID, "error", err)
	}
	return &data, nil
}

// completeStep emits a completed event with the elapsed duration and
// records the step duration metric.
func (p *Pipeline) completeStep(emit emitFunc, step string, start time.Time, message string) {
	elapsed := time.Since(start)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordStepDuration(step, elapsed.Seconds())
	}
	emit(datatypes.ProgressEvent{
		Step:     step,
		Status:   datatypes.StatusCompleted,
		Duration: elapsed.Milliseconds(),
		Message:  message,
	})
}

// failStep emits the stage's error event, records the span failure, and
// passes the error back for terminal handling.
func (p *Pipeline) failStep(emit emitFunc, span trace.Span, step string, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	emit(datatypes.ProgressEvent{
		Step:     step,
		Status:   datatypes.StatusError,
		Duration: time.Since(start).Milliseconds(),
		Message:  err.Error(),
	})
	return err
}

var _ Runner = (*Pipeline)(nil)
