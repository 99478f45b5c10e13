// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Samcarr01/the-ai-lab/pkg/extensions"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/handlers"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/middleware"
)

// SetupRoutes wires every endpoint onto the router.
//
// /health and /metrics are unauthenticated; everything under /v1 passes
// through the auth middleware. The generation endpoint performs its own
// admin authorization inside the stream.
func SetupRoutes(router *gin.Engine, deps *handlers.Dependencies, authProvider extensions.AuthProvider) {
	router.GET("/health", handlers.HandleHealth(deps))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authProvider))
	{
		blog := v1.Group("/blog")
		{
			blog.POST("/generate/stream", handlers.HandleGenerateStream(deps))
			blog.GET("/posts", handlers.HandleListPosts(deps))
			blog.GET("/posts/:postId", handlers.HandleGetPost(deps))
		}
	}
}
