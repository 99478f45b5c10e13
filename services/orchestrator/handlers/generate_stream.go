// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the orchestrator.
//
// # Description
//
// The generation endpoint streams a blog post build over SSE. Malformed
// requests are rejected with plain HTTP status codes before the stream
// opens; every failure after that point arrives as an in-stream frame so
// the client always gets exactly one terminal event per request.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Samcarr01/the-ai-lab/pkg/extensions"
	"github.com/Samcarr01/the-ai-lab/services/llm"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/middleware"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/observability"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/pipeline"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/ratelimit"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/storage"
)

var tracer = otel.Tracer("theailab.orchestrator.handlers")

// Dependencies carries everything the handlers need. Built once in main
// and shared across requests.
//
// # Fields
//
//   - Pipeline: The generation pipeline. Required.
//   - Authz: Authorization policy for the admin-only generate action. Required.
//   - Limiter: Per-identity rate limiter. Required.
//   - RateLimitMax: Requests per window, used in the rejection message.
//   - KeepAliveInterval: SSE ping cadence. Zero disables keepalives.
//   - Store: Draft persistence. Nil disables saving.
//   - Rehoster: Image rehosting. Nil keeps provider URLs.
type Dependencies struct {
	Pipeline          pipeline.Runner
	Authz             extensions.AuthzProvider
	Limiter           ratelimit.Limiter
	RateLimitMax      int
	KeepAliveInterval time.Duration
	Store             *storage.PostStore
	Rehoster          *storage.Rehoster
}

// HandleGenerateStream returns the handler for POST /v1/blog/generate/stream.
//
// # Description
//
// Validates and sanitizes the request, opens the SSE stream, then walks
// the admission checks (admin authorization, rate limit, provider
// credentials). Each admission failure produces exactly one setup-error
// frame and closes the stream. Admitted requests run the pipeline, which
// writes progress frames and the terminal final_result; a pipeline error
// instead produces the single terminal error frame here.
//
// On success the draft is persisted and its images rehosted in the
// background; neither can affect the already-completed response.
//
// # Limitations
//
//   - The rate limiter is advisory: concurrent requests racing the window
//     boundary may briefly exceed the cap.
func HandleGenerateStream(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, span := tracer.Start(c.Request.Context(), "HandleGenerateStream")
		defer span.End()

		var req datatypes.GenerationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.SetStatus(codes.Error, "invalid request body")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
			return
		}

		prompt := datatypes.SanitizeText(req.Prompt, datatypes.MaxPromptLength)
		knowledgeBase := datatypes.SanitizeText(req.KnowledgeBase, datatypes.MaxKnowledgeBaseLength)
		if utf8.RuneCountInString(prompt) < datatypes.MinPromptLength {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(observability.ErrorCodeValidation)
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Prompt must be at least %d characters", datatypes.MinPromptLength),
			})
			return
		}
		req.EnsureDefaults()

		requestID := uuid.New().String()
		span.SetAttributes(attribute.String("generation.request_id", requestID))
		log := slog.With("request_id", requestID)

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.StreamStarted()
			defer m.StreamEnded()
		}

		// Admission checks. Each failure is one setup-error frame; the
		// stream then closes with no terminal result.
		authInfo := middleware.GetAuthInfo(c)
		if authInfo == nil {
			rejectSetup(writer, log, observability.ErrorCodeAuth, "Authentication required.")
			return
		}

		err = deps.Authz.Authorize(ctx, extensions.AuthzRequest{
			User:         authInfo,
			Action:       "generate",
			ResourceType: "blog_post",
		})
		if err != nil {
			log.Warn("generation denied", "user_id", authInfo.UserID)
			rejectSetup(writer, log, observability.ErrorCodeAuth,
				"Admin access required for blog generation.")
			return
		}

		if !deps.Limiter.Admit(rateLimitIdentity(authInfo), time.Now()) {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordRateLimitRejection()
			}
			rejectSetup(writer, log, observability.ErrorCodeRateLimit,
				fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute.", deps.RateLimitMax))
			return
		}

		if !deps.Pipeline.CompletionConfigured() {
			rejectSetup(writer, log, observability.ErrorCodeConfig,
				"OpenAI API key not configured")
			return
		}
		if req.WebSearch() && !deps.Pipeline.SearchConfigured() {
			rejectSetup(writer, log, observability.ErrorCodeConfig,
				"Perplexity API key not configured for web search")
			return
		}

		// Keepalive pings during long provider calls.
		if deps.KeepAliveInterval > 0 {
			stop := startKeepAlive(writer, deps.KeepAliveInterval)
			defer stop()
		}

		log.Info("generation started",
			"user_id", authInfo.UserID,
			"web_search", req.WebSearch(),
			"images", req.Images(),
		)

		data, err := deps.Pipeline.Run(ctx, pipeline.RunInput{
			RequestID:     requestID,
			Prompt:        prompt,
			KnowledgeBase: knowledgeBase,
			WebSearch:     req.WebSearch(),
			Images:        req.Images(),
			Start:         start,
		}, writer)
		if err != nil {
			code := classifyError(err)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(code)
				m.RecordRequest(false)
				if errors.Is(err, context.Canceled) {
					m.RecordClientDisconnect()
				}
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("generation failed", "error", err, "code", string(code))
			if writeErr := writer.WriteError(err.Error()); writeErr != nil {
				log.Warn("failed to write terminal error frame", "error", writeErr)
			}
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(true)
		}
		log.Info("generation complete",
			"words", data.WordCount,
			"images", len(data.GeneratedImages),
			"total_ms", data.TotalDuration,
		)

		// The response is done; persistence must not hold the stream
		// open or surface errors to the client.
		if deps.Store != nil {
			go persistDraft(deps, log, *data)
		}
	}
}

// startKeepAlive pings the stream every interval until stop is called.
// stop blocks until the goroutine has exited, so no ping can reach the
// writer after the handler returns.
func startKeepAlive(writer SSEWriter, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

// rejectSetup writes the single setup-error frame for a refused request.
func rejectSetup(writer SSEWriter, log *slog.Logger, code observability.ErrorCode, message string) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(code)
		m.RecordRequest(false)
	}
	err := writer.WriteProgress(datatypes.ProgressEvent{
		Step:    datatypes.StepSetup,
		Status:  datatypes.StatusError,
		Message: message,
	})
	if err != nil {
		log.Warn("failed to write setup rejection", "error", err)
	}
}

// rateLimitIdentity picks the identity string the limiter buckets on.
// Email when present, otherwise the opaque user id.
func rateLimitIdentity(info *extensions.AuthInfo) string {
	if info.Email != "" {
		return info.Email
	}
	return info.UserID
}

// classifyError maps a pipeline error to its metrics code.
func classifyError(err error) observability.ErrorCode {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, pipeline.ErrSearchKeyMissing),
		errors.Is(err, pipeline.ErrCompletionKeyMissing):
		return observability.ErrorCodeConfig
	case errors.Is(err, pipeline.ErrStreamBroken),
		errors.Is(err, pipeline.ErrEmptyStream):
		return observability.ErrorCodeTransport
	case errors.As(err, &apiErr):
		return observability.ErrorCodeProvider
	default:
		return observability.ErrorCodeInternal
	}
}

// persistDraft saves the finished post and rehosts its images. Runs in
// the background with its own context; the request is already gone.
func persistDraft(deps *Dependencies, log *slog.Logger, data datatypes.FinalResultData) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if deps.Rehoster != nil && len(data.GeneratedImages) > 0 {
		rehosted := deps.Rehoster.Rehost(ctx, &data.BlogPost)
		log.Info("images rehosted", "count", rehosted)
	}

	id, err := deps.Store.Save(data.BlogPost, data.WordCount)
	if err != nil {
		log.Error("failed to persist draft", "error", err)
		return
	}
	log.Info("draft saved", "post_id", id)
}
