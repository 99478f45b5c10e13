// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
)

// targetWordCount is the length the prompt asks for. Shorter posts are
// accepted and logged, never rejected.
const targetWordCount = 1500

// fallbackCategory is the category assigned to fallback posts.
const fallbackCategory = "AI Tools"

// citationPattern matches bracketed numeric citation markers like [1].
var citationPattern = regexp.MustCompile(`\[\d+\]`)

// extractPost parses the accumulated model output into a BlogPost.
//
// # Description
//
// Locates the embedded JSON object with a string-aware balanced-brace
// scan, parses it, then cleans the content field: a fixed ordered
// sequence of unescape substitutions followed by citation stripping.
// On any failure a deterministic fallback post is returned instead;
// extraction is never fatal to the run.
//
// # Outputs
//
//   - *datatypes.BlogPost: The parsed post, or the fallback.
//   - bool: True when the model output parsed, false on fallback.
func extractPost(raw, prompt string) (*datatypes.BlogPost, bool) {
	jsonText, ok := extractJSONObject(strings.TrimSpace(raw))
	if !ok {
		slog.Error("no JSON object found in model output", "preview", preview(raw, 500))
		return fallbackPost(prompt), false
	}

	var post datatypes.BlogPost
	if err := json.Unmarshal([]byte(jsonText), &post); err != nil {
		slog.Error("failed to parse blog JSON", "error", err, "preview", preview(raw, 500))
		return fallbackPost(prompt), false
	}

	post.Content = stripCitations(unescapeContent(post.Content))

	if wc := wordCount(post.Content); wc < targetWordCount {
		slog.Warn("generated content under target length",
			"words", wc, "target", targetWordCount)
	}
	return &post, true
}

// extractJSONObject returns the first balanced JSON object in s.
//
// The scan starts at the first '{' and tracks brace depth while honoring
// string literals and escape sequences, so stray braces inside prose or
// string values cannot produce an over-broad span. A truncated or
// unbalanced object reports not-found; the caller falls back.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// unescapeContent applies the fixed ordered unescape sequence to content
// that survived JSON parsing with literal escape sequences intact.
// Order matters: the backslash-n substitution runs first, the
// double-backslash collapse sits mid-sequence exactly where the escaped
// markdown punctuation rules expect it.
func unescapeContent(content string) string {
	replacements := []struct{ old, new string }{
		{`\n`, "\n"},
		{`\*`, "*"},
		{`\"`, `"`},
		{`\\`, `\`},
		{`\#`, "#"},
		{`\-`, "-"},
		{`\>`, ">"},
		{"\\`", "`"},
		{`\[`, "["},
		{`\]`, "]"},
		{`\(`, "("},
		{`\)`, ")"},
	}
	for _, r := range replacements {
		content = strings.ReplaceAll(content, r.old, r.new)
	}
	return content
}

// stripCitations removes bracketed numeric citation markers entirely.
// Idempotent: stripped content passes through unchanged.
func stripCitations(content string) string {
	return citationPattern.ReplaceAllString(content, "")
}

// fallbackPost builds the deterministic degraded post used when
// extraction fails. Guarantees the pipeline always reaches finalization
// with a well-formed artifact.
func fallbackPost(prompt string) *datatypes.BlogPost {
	return &datatypes.BlogPost{
		Title:   truncateRunes(prompt, 60) + "...",
		Content: fmt.Sprintf("# %s\n\nWe apologize, but there was an error generating this blog post. Please try again.", prompt),
		MetaDescription: truncateRunes(
			fmt.Sprintf("Learn about %s. Expert insights and strategies.", prompt), 160),
		Category: fallbackCategory,
		ReadTime: 5,
	}
}

// truncateRunes caps s at n characters.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// wordCount counts whitespace-separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
