// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains request, progress, and result types for the blog
// generation streaming endpoint.
package datatypes

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxPromptLength is the maximum prompt size accepted from a caller,
	// in characters after trimming.
	MaxPromptLength = 500

	// MaxKnowledgeBaseLength is the maximum size of a caller-supplied
	// knowledge base override.
	MaxKnowledgeBaseLength = 3000

	// MinPromptLength is the minimum sanitized prompt length. Shorter
	// prompts are rejected before any provider call is made.
	MinPromptLength = 10
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// genValidate is the validator instance for generation datatypes.
var genValidate *validator.Validate

func init() {
	genValidate = validator.New()
}

// =============================================================================
// Sanitization
// =============================================================================

// SanitizeText trims, bounds, and scrubs caller-supplied text.
//
// # Description
//
// Applies, in order: whitespace trimming, truncation to maxLen characters,
// removal of all angle brackets, and removal of case-insensitive
// "javascript:" scheme prefixes. Empty input yields an empty string.
// Never fails.
//
// # Inputs
//
//   - input: Raw caller text. May be empty.
//   - maxLen: Maximum length in characters (runes).
//
// # Outputs
//
//   - string: Sanitized text, length <= maxLen, with no '<', '>', or
//     "javascript:" substrings.
func SanitizeText(input string, maxLen int) string {
	s := strings.TrimSpace(input)
	if utf8.RuneCountInString(s) > maxLen {
		runes := []rune(s)
		s = string(runes[:maxLen])
	}
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	s = removeFold(s, "javascript:")
	return s
}

// removeFold removes every case-insensitive occurrence of sub from s.
func removeFold(s, sub string) string {
	if sub == "" {
		return s
	}
	lower := strings.ToLower(s)
	lowerSub := strings.ToLower(sub)
	var b strings.Builder
	for {
		i := strings.Index(lower, lowerSub)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(sub):]
		lower = lower[i+len(lowerSub):]
	}
}

// =============================================================================
// Generation Request
// =============================================================================

// GenerationRequest is the body of POST /v1/blog/generate/stream.
//
// # Description
//
// Carries the topic prompt, an optional knowledge-base override for the SEO
// guidance injected into the system prompt, and two feature flags. The flags
// are pointers so an absent field defaults to true rather than false.
// The request is immutable for the lifetime of one pipeline run; sanitized
// copies of the text fields are taken before the stream opens.
//
// # Fields
//
//   - Prompt: Required. Blog topic, at most 500 characters. After
//     sanitization a prompt under 10 characters is rejected with HTTP 400.
//   - KnowledgeBase: Optional. SEO guidance override, at most 3000 characters.
//     When empty a built-in default is used.
//   - IncludeWebSearch: Optional, default true. Routes generation through the
//     search-augmented provider when a credential is configured.
//   - IncludeImages: Optional, default true. Enables the image enrichment
//     stage.
type GenerationRequest struct {
	Prompt           string `json:"prompt" validate:"required"`
	KnowledgeBase    string `json:"knowledgeBase"`
	IncludeWebSearch *bool  `json:"includeWebSearch"`
	IncludeImages    *bool  `json:"includeImages"`
}

// Validate validates the GenerationRequest fields.
func (r *GenerationRequest) Validate() error {
	return genValidate.Struct(r)
}

// EnsureDefaults populates the feature flags when the client omitted them.
// Both flags default to enabled.
func (r *GenerationRequest) EnsureDefaults() {
	if r.IncludeWebSearch == nil {
		enabled := true
		r.IncludeWebSearch = &enabled
	}
	if r.IncludeImages == nil {
		enabled := true
		r.IncludeImages = &enabled
	}
}

// WebSearch reports whether web search is requested.
func (r *GenerationRequest) WebSearch() bool {
	return r.IncludeWebSearch != nil && *r.IncludeWebSearch
}

// Images reports whether image enrichment is requested.
func (r *GenerationRequest) Images() bool {
	return r.IncludeImages != nil && *r.IncludeImages
}

// =============================================================================
// Progress Events
// =============================================================================

// Pipeline step names carried in progress frames.
const (
	StepSetup             = "setup"
	StepWebSearch         = "web_search"
	StepContentGeneration = "content_generation"
	StepImageGeneration   = "image_generation"
	StepFinalization      = "finalization"
	StepError             = "error"
)

// Progress statuses carried in progress frames.
const (
	StatusStarting  = "starting"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ProgressEvent is one progress frame on the generation stream.
//
// # Description
//
// Reports the state of a single pipeline step. A step emits exactly one
// "starting", any number of "running" updates, and exactly one terminal
// "completed" or "error". Events are transient; they are emitted and
// forgotten, never stored.
//
// # Fields
//
//   - Step: One of the Step* constants, or "error" for terminal failures.
//   - Status: One of the Status* constants.
//   - Duration: Optional elapsed time for the step in milliseconds.
//   - Message: Optional human-readable detail.
type ProgressEvent struct {
	Step     string `json:"step"`
	Status   string `json:"status"`
	Duration int64  `json:"duration,omitempty"`
	Message  string `json:"message,omitempty"`
}

// =============================================================================
// Blog Post Result
// =============================================================================

// GeneratedImage describes one image produced by the enrichment stage.
type GeneratedImage struct {
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
	Placement   string `json:"placement"`
}

// Image placement tags.
const (
	PlacementHero    = "hero"
	PlacementContent = "content"
)

// BlogPost is the draft artifact produced by the generation pipeline.
//
// # Description
//
// Created by the result extractor (or its deterministic fallback), mutated in
// place by the image enrichment stage and the finalizer, then handed to the
// caller inside the terminal frame. The pipeline itself never persists it;
// the draft store saves a copy after the response completes.
type BlogPost struct {
	Title           string           `json:"title"`
	Content         string           `json:"content"`
	MetaDescription string           `json:"meta_description"`
	Category        string           `json:"category"`
	ReadTime        int              `json:"read_time"`
	GeneratedImages []GeneratedImage `json:"generated_images"`
}

// FinalResultData is the payload of the terminal final_result frame.
type FinalResultData struct {
	BlogPost
	WordCount     int   `json:"word_count"`
	TotalDuration int64 `json:"total_duration"`
}

// FinalResult is the terminal frame sent once per successful run.
// Exactly one terminal frame is ever sent: either this or an error-status
// progress event.
type FinalResult struct {
	Type string          `json:"type"`
	Data FinalResultData `json:"data"`
}

// FinalResultType is the Type value of the terminal frame.
const FinalResultType = "final_result"
