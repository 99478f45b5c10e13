// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
)

// fakeImageClient returns a fixed URL or error.
type fakeImageClient struct {
	url string
	err error

	prompts []string
}

func (f *fakeImageClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func TestImagePromptForTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"ai tools keyword", "Top 10 AI Tools for 2026", imagePromptAITools},
		{"artificial intelligence keyword", "Artificial Intelligence at Work", imagePromptAITools},
		{"productivity keyword", "Boost Your Productivity", imagePromptProductivity},
		{"marketing keyword", "Marketing Automation Guide", imagePromptMarketing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, imagePromptForTitle(tt.title))
		})
	}

	t.Run("default template interpolates title", func(t *testing.T) {
		got := imagePromptForTitle("Gardening Basics")
		assert.Contains(t, got, `"Gardening Basics"`)
	})
}

func TestEnrichWithImages_SplicesFirstPlaceholder(t *testing.T) {
	post := &datatypes.BlogPost{
		Title:   "AI Tools Roundup",
		Content: "Intro\n\n[IMAGE: hero shot]\n\nBody\n\n[IMAGE: second one]\n\nEnd",
	}
	client := &fakeImageClient{url: "https://img.example/hero.png"}

	var events []datatypes.ProgressEvent
	ok := enrichWithImages(context.Background(), post, client, collectEvents(&events))

	require.True(t, ok)
	require.Len(t, post.GeneratedImages, 1)
	assert.Equal(t, "https://img.example/hero.png", post.GeneratedImages[0].URL)
	assert.Equal(t, datatypes.PlacementHero, post.GeneratedImages[0].Placement)

	assert.Contains(t, post.Content, "](https://img.example/hero.png)")
	assert.NotContains(t, post.Content, "[IMAGE:", "all placeholders must be consumed")

	require.Len(t, client.prompts, 1)
	assert.Equal(t, imagePromptAITools, client.prompts[0], "title keywords pick the template")
}

func TestEnrichWithImages_FailureRemovesAllPlaceholders(t *testing.T) {
	post := &datatypes.BlogPost{
		Title:   "Some Post",
		Content: "A [IMAGE: one] B [IMAGE: two] C",
	}
	client := &fakeImageClient{err: errors.New("quota exceeded")}

	var events []datatypes.ProgressEvent
	ok := enrichWithImages(context.Background(), post, client, collectEvents(&events))

	assert.False(t, ok)
	assert.Empty(t, post.GeneratedImages)
	assert.NotContains(t, post.Content, "[IMAGE:")
	assert.Equal(t, "A  B  C", post.Content)
}

func TestEnrichWithImages_NilClientFailsContained(t *testing.T) {
	post := &datatypes.BlogPost{
		Title:   "Some Post",
		Content: "A [IMAGE: one] B",
	}

	var events []datatypes.ProgressEvent
	ok := enrichWithImages(context.Background(), post, nil, collectEvents(&events))

	assert.False(t, ok)
	assert.Empty(t, post.GeneratedImages)
	assert.NotContains(t, post.Content, "[IMAGE:")
}

func TestEnrichWithImages_NoPlaceholders(t *testing.T) {
	post := &datatypes.BlogPost{
		Title:   "Some Post",
		Content: "No markers here at all.",
	}
	client := &fakeImageClient{url: "https://img.example/hero.png"}

	var events []datatypes.ProgressEvent
	ok := enrichWithImages(context.Background(), post, client, collectEvents(&events))

	require.True(t, ok)
	require.Len(t, post.GeneratedImages, 1)
	assert.Equal(t, "No markers here at all.", post.Content,
		"content untouched when there is nothing to splice")
}
