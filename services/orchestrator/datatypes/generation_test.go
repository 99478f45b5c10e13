// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "plain text unchanged",
			input:  "Write about AI productivity tools",
			maxLen: 500,
			want:   "Write about AI productivity tools",
		},
		{
			name:   "trims whitespace",
			input:  "  hello world  ",
			maxLen: 500,
			want:   "hello world",
		},
		{
			name:   "empty input",
			input:  "",
			maxLen: 500,
			want:   "",
		},
		{
			name:   "removes angle brackets",
			input:  "hello <script>alert(1)</script> world",
			maxLen: 500,
			want:   "hello scriptalert(1)/script world",
		},
		{
			name:   "strips javascript scheme case-insensitively",
			input:  "click JavaScript:alert(1) and javascript:void(0)",
			maxLen: 500,
			want:   "click alert(1) and void(0)",
		},
		{
			name:   "caps length",
			input:  strings.Repeat("a", 600),
			maxLen: 500,
			want:   strings.Repeat("a", 500),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeText(tt.input, tt.maxLen)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeText_Properties(t *testing.T) {
	inputs := []string{
		"normal prompt about marketing",
		"<<<>>>",
		"JAVASCRIPT:JAVASCRIPT:stacked",
		strings.Repeat("<javascript:>", 200),
		"unicode prompt: caffè ☕ résumé",
	}
	for _, in := range inputs {
		got := SanitizeText(in, 100)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), 100)
		assert.NotContains(t, got, "<")
		assert.NotContains(t, got, ">")
		assert.NotContains(t, strings.ToLower(got), "javascript:")
	}
}

func TestGenerationRequest_EnsureDefaults(t *testing.T) {
	t.Run("absent flags default to true", func(t *testing.T) {
		var req GenerationRequest
		require.NoError(t, json.Unmarshal([]byte(`{"prompt":"a valid prompt here"}`), &req))
		req.EnsureDefaults()
		assert.True(t, req.WebSearch())
		assert.True(t, req.Images())
	})

	t.Run("explicit false is preserved", func(t *testing.T) {
		var req GenerationRequest
		require.NoError(t, json.Unmarshal(
			[]byte(`{"prompt":"a valid prompt here","includeWebSearch":false,"includeImages":false}`), &req))
		req.EnsureDefaults()
		assert.False(t, req.WebSearch())
		assert.False(t, req.Images())
	})
}

func TestGenerationRequest_Validate(t *testing.T) {
	req := GenerationRequest{Prompt: "time management for remote workers"}
	assert.NoError(t, req.Validate())

	empty := GenerationRequest{}
	assert.Error(t, empty.Validate())
}
