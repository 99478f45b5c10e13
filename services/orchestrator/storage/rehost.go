// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Samcarr01/the-ai-lab/pkg/gcs"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/datatypes"
)

// maxImageDownloadBytes caps a single provider image download. DALL-E
// PNGs at 1792x1024 run a few megabytes.
const maxImageDownloadBytes = 20 << 20

// Rehoster copies expiring provider image URLs into durable storage.
//
// # Description
//
// DALL-E URLs expire within hours. Rehost downloads each generated image
// and uploads it to GCS, rewriting the URLs in the post (both the image
// list and the inline markdown reference) to the public bucket URL.
//
// Rehosting runs after the terminal frame, so failures are logged and the
// original URL is kept; the draft still saves.
type Rehoster struct {
	gcs        *gcs.Client
	httpClient *http.Client
}

// NewRehoster creates a Rehoster over the given GCS client.
func NewRehoster(client *gcs.Client) *Rehoster {
	return &Rehoster{
		gcs:        client,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Rehost rewrites every image URL in post to a durable copy. Best-effort
// per image; the returned count is how many were rehosted.
func (r *Rehoster) Rehost(ctx context.Context, post *datatypes.BlogPost) int {
	rehosted := 0
	for i := range post.GeneratedImages {
		img := &post.GeneratedImages[i]
		durable, err := r.rehostOne(ctx, img.URL)
		if err != nil {
			slog.Warn("image rehost failed, keeping provider URL",
				"url_preview", previewURL(img.URL), "error", err)
			continue
		}
		post.Content = strings.ReplaceAll(post.Content, img.URL, durable)
		img.URL = durable
		rehosted++
	}
	return rehosted
}

// rehostOne downloads one provider URL and uploads it to the bucket.
func (r *Rehoster) rehostOne(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building download request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}

	objectPath := fmt.Sprintf("posts/%s%s", uuid.New().String(), extensionFor(contentType))
	body := io.LimitReader(resp.Body, maxImageDownloadBytes)
	return r.gcs.Upload(ctx, objectPath, contentType, body)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// previewURL truncates long signed URLs for log output.
func previewURL(url string) string {
	if len(url) <= 80 {
		return url
	}
	return url[:80] + "..."
}
