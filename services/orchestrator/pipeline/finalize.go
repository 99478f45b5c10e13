// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
)

// readingWordsPerMinute is the reading speed used for read time.
const readingWordsPerMinute = 200

var excessNewlines = regexp.MustCompile(`\n\n\n+`)

// finalizePost normalizes formatting and computes the derived fields,
// returning the terminal payload.
//
// Heading markers get a blank line before them, runs of three or more
// newlines collapse to one blank line, word count is a whitespace split,
// and read time is word count over reading speed, rounded up.
func finalizePost(post *datatypes.BlogPost, start time.Time) datatypes.FinalResultData {
	post.Content = normalizeSpacing(post.Content)

	words := wordCount(post.Content)
	post.ReadTime = (words + readingWordsPerMinute - 1) / readingWordsPerMinute
	if post.GeneratedImages == nil {
		post.GeneratedImages = []datatypes.GeneratedImage{}
	}

	return datatypes.FinalResultData{
		BlogPost:      *post,
		WordCount:     words,
		TotalDuration: time.Since(start).Milliseconds(),
	}
}

// normalizeSpacing ensures a blank line precedes section headings and
// collapses excess vertical whitespace.
func normalizeSpacing(content string) string {
	content = strings.ReplaceAll(content, "\n##", "\n\n##")
	content = strings.ReplaceAll(content, "\n###", "\n\n###")
	return excessNewlines.ReplaceAllString(content, "\n\n")
}
