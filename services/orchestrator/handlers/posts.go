// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Samcarr01/the-ai-lab/services/orchestrator/storage"
)

// HandleListPosts returns the handler for GET /v1/blog/posts.
//
// Returns every persisted draft, newest first. An empty store returns an
// empty list, not 404.
func HandleListPosts(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "draft storage not configured"})
			return
		}

		posts, err := deps.Store.List()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
			return
		}
		if posts == nil {
			posts = []storage.StoredPost{}
		}
		c.JSON(http.StatusOK, gin.H{"posts": posts})
	}
}

// HandleGetPost returns the handler for GET /v1/blog/posts/:postId.
func HandleGetPost(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "draft storage not configured"})
			return
		}

		post, err := deps.Store.Get(c.Param("postId"))
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load post"})
			return
		}
		c.JSON(http.StatusOK, post)
	}
}
