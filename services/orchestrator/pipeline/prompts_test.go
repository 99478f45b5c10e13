// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Run("includes topic and default knowledge", func(t *testing.T) {
		got := buildSystemPrompt("best ai writing tools", "", false)
		assert.Contains(t, got, "best ai writing tools")
		assert.Contains(t, got, "Optimal length: 1,500-2,500 words")
		assert.NotContains(t, got, "RESEARCH REQUIREMENTS")
	})

	t.Run("caller knowledge base replaces default", func(t *testing.T) {
		got := buildSystemPrompt("topic words here", "Use a formal tone only.", false)
		assert.Contains(t, got, "Use a formal tone only.")
		assert.NotContains(t, got, "Optimal length: 1,500-2,500 words")
	})

	t.Run("web search adds research requirements", func(t *testing.T) {
		got := buildSystemPrompt("topic words here", "", true)
		assert.Contains(t, got, "RESEARCH REQUIREMENTS")
	})

	t.Run("response contract present", func(t *testing.T) {
		got := buildSystemPrompt("topic words here", "", false)
		assert.Contains(t, got, "FORMAT YOUR RESPONSE AS JSON")
		assert.Contains(t, got, `"meta_description"`)
	})
}
