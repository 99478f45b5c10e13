// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleHealth returns the handler for GET /health.
//
// Liveness only. Provider credentials are reported so deployment checks
// can distinguish a running service from a usable one.
func HandleHealth(deps *Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":              "ok",
			"completion_provider": deps.Pipeline.CompletionConfigured(),
			"web_search_provider": deps.Pipeline.SearchConfigured(),
		})
	}
}
