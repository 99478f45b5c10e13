// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samcarr01/the-ai-lab/pkg/extensions"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/middleware"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/pipeline"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRunner is a configurable pipeline for handler tests.
type stubRunner struct {
	searchConfigured     bool
	completionConfigured bool
	err                  error

	gotInput pipeline.RunInput
}

func (s *stubRunner) Run(ctx context.Context, in pipeline.RunInput, sink pipeline.ProgressSink) (*datatypes.FinalResultData, error) {
	s.gotInput = in
	if s.err != nil {
		return nil, s.err
	}
	_ = sink.WriteProgress(datatypes.ProgressEvent{
		Step:   datatypes.StepSetup,
		Status: datatypes.StatusStarting,
	})
	data := datatypes.FinalResultData{
		BlogPost: datatypes.BlogPost{
			Title:           "Done",
			GeneratedImages: []datatypes.GeneratedImage{},
		},
		WordCount: 100,
	}
	_ = sink.WriteFinal(data)
	return &data, nil
}

func (s *stubRunner) SearchConfigured() bool     { return s.searchConfigured }
func (s *stubRunner) CompletionConfigured() bool { return s.completionConfigured }

// denyAllLimiter refuses every request.
type denyAllLimiter struct{}

func (denyAllLimiter) Admit(string, time.Time) bool { return false }
func (denyAllLimiter) Close()                       {}

func testDeps(runner pipeline.Runner) *Dependencies {
	return &Dependencies{
		Pipeline:     runner,
		Authz:        &extensions.NopAuthzProvider{},
		Limiter:      ratelimit.NewWindowLimiter(time.Minute, 100, 0),
		RateLimitMax: 3,
	}
}

// serveGenerate runs one request through a router with the given deps and
// authenticated user.
func serveGenerate(t *testing.T, deps *Dependencies, user *extensions.AuthInfo, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST("/v1/blog/generate/stream", func(c *gin.Context) {
		if user != nil {
			middleware.SetAuthInfo(c, user)
		}
		HandleGenerateStream(deps)(c)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/blog/generate/stream", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func adminUser() *extensions.AuthInfo {
	return &extensions.AuthInfo{UserID: "u1", Email: "sam@thehackai.com", Roles: []string{"admin"}}
}

// parseFrames splits an SSE body into its decoded JSON payloads.
func parseFrames(t *testing.T, body string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for _, chunk := range strings.Split(body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if !strings.HasPrefix(chunk, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), &frame))
		frames = append(frames, frame)
	}
	return frames
}

func TestHandleGenerateStream_Success(t *testing.T) {
	runner := &stubRunner{completionConfigured: true, searchConfigured: true}
	w := serveGenerate(t, testDeps(runner), adminUser(),
		`{"prompt":"write about ai productivity tools"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := parseFrames(t, w.Body.String())
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, "final_result", last["type"])

	assert.Equal(t, "write about ai productivity tools", runner.gotInput.Prompt)
	assert.True(t, runner.gotInput.WebSearch, "web search defaults on")
	assert.True(t, runner.gotInput.Images, "images default on")
}

func TestHandleGenerateStream_FlagsPassedThrough(t *testing.T) {
	runner := &stubRunner{completionConfigured: true}
	serveGenerate(t, testDeps(runner), adminUser(),
		`{"prompt":"write about ai tools","includeWebSearch":false,"includeImages":false}`)

	assert.False(t, runner.gotInput.WebSearch)
	assert.False(t, runner.gotInput.Images)
}

func TestHandleGenerateStream_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing prompt", `{}`},
		{"short prompt", `{"prompt":"short"}`},
		{"prompt short after sanitization", `{"prompt":"<<<<<<<<<<ab>>>>>>>>>>"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{completionConfigured: true}
			w := serveGenerate(t, testDeps(runner), adminUser(), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotContains(t, w.Header().Get("Content-Type"), "text/event-stream")
		})
	}
}

func TestHandleGenerateStream_PromptLengthBoundary(t *testing.T) {
	t.Run("nine runes rejected", func(t *testing.T) {
		w := serveGenerate(t, testDeps(&stubRunner{completionConfigured: true}), adminUser(),
			`{"prompt":"abcdefghi"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ten runes accepted", func(t *testing.T) {
		w := serveGenerate(t, testDeps(&stubRunner{completionConfigured: true}), adminUser(),
			`{"prompt":"abcdefghij"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	})
}

func TestHandleGenerateStream_PromptSanitized(t *testing.T) {
	runner := &stubRunner{completionConfigured: true}
	serveGenerate(t, testDeps(runner), adminUser(),
		`{"prompt":"  <b>javascript:alert</b> write about ai tools  "}`)

	assert.NotContains(t, runner.gotInput.Prompt, "<")
	assert.NotContains(t, runner.gotInput.Prompt, ">")
	assert.NotContains(t, runner.gotInput.Prompt, "javascript:")
}

func TestHandleGenerateStream_NonAdminRejectedInStream(t *testing.T) {
	deps := testDeps(&stubRunner{completionConfigured: true})
	deps.Authz = &extensions.AdminAuthzProvider{AdminEmail: "sam@thehackai.com"}

	w := serveGenerate(t, deps, &extensions.AuthInfo{UserID: "u2", Email: "visitor@example.com"},
		`{"prompt":"write about ai tools"}`)

	// Rejection is in-stream, not an HTTP status.
	assert.Equal(t, http.StatusOK, w.Code)
	frames := parseFrames(t, w.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, datatypes.StepSetup, frames[0]["step"])
	assert.Equal(t, datatypes.StatusError, frames[0]["status"])
	assert.Equal(t, "Admin access required for blog generation.", frames[0]["message"])
}

func TestHandleGenerateStream_RateLimited(t *testing.T) {
	deps := testDeps(&stubRunner{completionConfigured: true})
	deps.Limiter = denyAllLimiter{}

	w := serveGenerate(t, deps, adminUser(), `{"prompt":"write about ai tools"}`)

	frames := parseFrames(t, w.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, datatypes.StatusError, frames[0]["status"])
	assert.Equal(t, "Rate limit exceeded. Maximum 3 requests per minute.", frames[0]["message"])
}

func TestHandleGenerateStream_MissingCompletionKey(t *testing.T) {
	deps := testDeps(&stubRunner{completionConfigured: false})

	w := serveGenerate(t, deps, adminUser(), `{"prompt":"write about ai tools"}`)

	frames := parseFrames(t, w.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "OpenAI API key not configured", frames[0]["message"])
}

func TestHandleGenerateStream_MissingSearchKey(t *testing.T) {
	deps := testDeps(&stubRunner{completionConfigured: true, searchConfigured: false})

	w := serveGenerate(t, deps, adminUser(),
		`{"prompt":"write about ai tools","includeWebSearch":true}`)

	frames := parseFrames(t, w.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "Perplexity API key not configured for web search", frames[0]["message"])
}

func TestHandleGenerateStream_SearchKeyNotNeededWhenDisabled(t *testing.T) {
	runner := &stubRunner{completionConfigured: true, searchConfigured: false}
	w := serveGenerate(t, testDeps(runner), adminUser(),
		`{"prompt":"write about ai tools","includeWebSearch":false}`)

	frames := parseFrames(t, w.Body.String())
	last := frames[len(frames)-1]
	assert.Equal(t, "final_result", last["type"])
}

func TestHandleGenerateStream_PipelineErrorTerminalFrame(t *testing.T) {
	runner := &stubRunner{
		completionConfigured: true,
		searchConfigured:     true,
		err:                  errors.New("provider exploded"),
	}
	w := serveGenerate(t, testDeps(runner), adminUser(), `{"prompt":"write about ai tools"}`)

	frames := parseFrames(t, w.Body.String())
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, "error", last["step"])
	assert.Equal(t, "error", last["status"])
	assert.Equal(t, "provider exploded", last["message"])
}

// pingCountingWriter records keepalive calls; other frames are dropped.
type pingCountingWriter struct {
	mu    sync.Mutex
	count int
}

func (p *pingCountingWriter) WriteProgress(datatypes.ProgressEvent) error { return nil }
func (p *pingCountingWriter) WriteFinal(datatypes.FinalResultData) error  { return nil }
func (p *pingCountingWriter) WriteError(string) error                     { return nil }

func (p *pingCountingWriter) WriteKeepAlive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return nil
}

func (p *pingCountingWriter) pings() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func TestStartKeepAlive_StopJoinsGoroutine(t *testing.T) {
	writer := &pingCountingWriter{}
	stop := startKeepAlive(writer, time.Millisecond)

	assert.Eventually(t, func() bool { return writer.pings() > 0 },
		time.Second, time.Millisecond)

	stop()
	got := writer.pings()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, got, writer.pings(), "no pings after stop returns")
}

func TestHandleGenerateStream_Unauthenticated(t *testing.T) {
	w := serveGenerate(t, testDeps(&stubRunner{completionConfigured: true}), nil,
		`{"prompt":"write about ai tools"}`)

	frames := parseFrames(t, w.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "Authentication required.", frames[0]["message"])
}
