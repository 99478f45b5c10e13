// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Samcarr01/the-ai-lab/services/llm"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/observability"
)

// maxImagesPerRun bounds the image fan-out. Current policy is one hero
// image per post; the dispatch supports more with per-image isolation.
const maxImagesPerRun = 1

// placeholderPattern matches inline [IMAGE: description] markers left by
// the model.
var placeholderPattern = regexp.MustCompile(`\[IMAGE:\s*([^\]]+)\]`)

// Fixed prompt templates selected by title keywords. The default template
// interpolates the title.
const (
	imagePromptAITools = `Create a detailed hero image showing specific AI tools interfaces. Include visual representations of ChatGPT, Claude, and Midjourney interfaces on computer screens. Show a modern workspace with multiple monitors displaying these AI applications. Use purple and blue accents, professional tech aesthetic. No text or words.`

	imagePromptProductivity = `Design a hero image showing productivity dashboards and workflow automation tools. Include visual elements like task boards, analytics graphs, automation flows. Modern tech workspace setting. Purple and blue color scheme. No text.`

	imagePromptMarketing = `Create an image showing digital marketing tools and analytics dashboards. Include social media interfaces, email campaign builders, and analytics charts. Modern, professional design with purple/blue accents. No text.`

	imagePromptDefaultFmt = `Professional hero image for article: "%s". Show specific tools, interfaces, or visual representations related to the topic. Modern tech aesthetic with purple/blue gradient. Clean, detailed, relevant to the subject. No text.`
)

// imagePromptForTitle maps the post title to a generation prompt via
// keyword template selection.
func imagePromptForTitle(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "ai tools") || strings.Contains(lower, "artificial intelligence"):
		return imagePromptAITools
	case strings.Contains(lower, "productivity"):
		return imagePromptProductivity
	case strings.Contains(lower, "marketing"):
		return imagePromptMarketing
	default:
		return fmt.Sprintf(imagePromptDefaultFmt, title)
	}
}

// enrichWithImages runs the image generation stage, mutating the post in
// place.
//
// # Description
//
// Scans the content for placeholder markers, requests exactly one hero
// image, and splices the result: the first placeholder becomes a markdown
// image reference, every other placeholder is deleted. Generation calls
// are dispatched together and awaited together; one failed image never
// fails the others.
//
// All failures are contained to this stage: the image list comes back
// empty and every placeholder is removed so none leak into published
// text. The run always proceeds to finalization. The return value tells
// the caller whether to close the step as completed or error.
func enrichWithImages(ctx context.Context, post *datatypes.BlogPost, client llm.ImageClient, emit emitFunc) bool {
	placeholders := placeholderPattern.FindAllString(post.Content, -1)

	emit(datatypes.ProgressEvent{
		Step:    datatypes.StepImageGeneration,
		Status:  datatypes.StatusRunning,
		Message: fmt.Sprintf("Generating %d images...", maxImagesPerRun),
	})

	images, failed := generateImages(ctx, post.Title, client)
	post.GeneratedImages = images
	if m := observability.DefaultMetrics; m != nil {
		m.RecordImages(len(images), maxImagesPerRun)
	}

	if len(images) == 0 {
		post.Content = removePlaceholders(post.Content, placeholders)
		return !failed
	}

	post.Content = splicePlaceholders(post.Content, placeholders, images[0])
	return true
}

// generateImages dispatches the bounded image fan-out and collects the
// successes. Per-image failures are logged and dropped; the second return
// reports whether any call failed.
func generateImages(ctx context.Context, title string, client llm.ImageClient) ([]datatypes.GeneratedImage, bool) {
	if client == nil {
		slog.Warn("image generation requested but no image client configured")
		return nil, true
	}

	prompts := []string{title}
	if len(prompts) > maxImagesPerRun {
		prompts = prompts[:maxImagesPerRun]
	}

	results := make([]*datatypes.GeneratedImage, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	for i, prompt := range prompts {
		g.Go(func() error {
			imagePrompt := imagePromptForTitle(title)
			url, err := client.GenerateImage(gctx, imagePrompt)
			if err != nil {
				slog.Error("image generation failed", "index", i, "error", err)
				return nil
			}
			placement := datatypes.PlacementContent
			if i == 0 {
				placement = datatypes.PlacementHero
			}
			results[i] = &datatypes.GeneratedImage{
				URL:         url,
				Prompt:      prompt,
				Description: fmt.Sprintf("Image %d: %s", i+1, prompt),
				Placement:   placement,
			}
			return nil
		})
	}
	// Workers contain their own failures; Wait only propagates context
	// cancellation, which leaves results empty anyway.
	_ = g.Wait()

	var images []datatypes.GeneratedImage
	anyFailed := false
	for _, r := range results {
		if r != nil {
			images = append(images, *r)
		} else {
			anyFailed = true
		}
	}
	return images, anyFailed
}

// splicePlaceholders replaces the first placeholder with a markdown
// reference to the hero image and deletes the rest.
func splicePlaceholders(content string, placeholders []string, hero datatypes.GeneratedImage) string {
	if len(placeholders) > 0 {
		description := hero.Description
		if description == "" {
			description = "Blog hero image"
		}
		content = strings.Replace(content, placeholders[0],
			fmt.Sprintf("![%s](%s)", description, hero.URL), 1)
		content = removePlaceholders(content, placeholders[1:])
	}
	return content
}

// removePlaceholders deletes every listed placeholder from content.
func removePlaceholders(content string, placeholders []string) string {
	for _, p := range placeholders {
		content = strings.Replace(content, p, "", 1)
	}
	return content
}
