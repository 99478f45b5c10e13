// Copyright (C) 2026 thehackai (sam@thehackai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/Samcarr01/the-ai-lab/pkg/extensions"
	"github.com/Samcarr01/the-ai-lab/pkg/gcs"
	"github.com/Samcarr01/the-ai-lab/services/llm"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/config"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/handlers"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/observability"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/pipeline"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/ratelimit"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/routes"
	"github.com/Samcarr01/the-ai-lab/services/orchestrator/storage"
)

func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("blog-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// --- Init the tracer ---
	if cfg.OTLPEndpoint != "" {
		cleanup, err := initTracer(cfg.OTLPEndpoint)
		if err != nil {
			log.Fatalf("failed to setup the OTLP tracer: %v", err)
		}
		defer cleanup(context.Background())
	} else {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, trace export disabled")
	}

	observability.InitMetrics()

	// Provider clients. The completion client is required for every run
	// that skips web search; search and images degrade gracefully.
	var completion llm.StreamClient
	if c, err := llm.NewOpenAIClient(); err != nil {
		slog.Warn("OpenAI client unavailable, generation requests will be refused", "error", err)
	} else {
		completion = c
	}

	var search llm.DocumentClient
	if c, err := llm.NewPerplexityClient(); err != nil {
		slog.Info("Perplexity client unavailable, web search requests will be refused", "error", err)
	} else {
		search = c
	}

	var images llm.ImageClient
	if c, err := llm.NewDalleClient(); err != nil {
		slog.Warn("DALL-E client unavailable, image enrichment disabled", "error", err)
	} else {
		images = c
	}

	store, err := storage.OpenPostStore(cfg.BadgerPath)
	if err != nil {
		log.Fatalf("failed to open draft store: %v", err)
	}
	defer store.Close()

	var rehoster *storage.Rehoster
	if cfg.RehostEnabled() {
		gcsClient, err := gcs.NewClient(context.Background(),
			cfg.GCSProjectID, cfg.GCSBucket, cfg.GCSKeyPath)
		if err != nil {
			slog.Warn("GCS client unavailable, image rehosting disabled", "error", err)
		} else {
			defer gcsClient.Close()
			rehoster = storage.NewRehoster(gcsClient)
		}
	}

	limiter := ratelimit.NewWindowLimiter(cfg.RateLimitWindow, cfg.RateLimitMax, cfg.RateLimitWindow)
	defer limiter.Close()

	deps := &handlers.Dependencies{
		Pipeline:          pipeline.New(search, completion, images, cfg.MaxChunkFailures),
		Authz:             &extensions.AdminAuthzProvider{AdminEmail: cfg.AdminEmail},
		Limiter:           limiter,
		RateLimitMax:      cfg.RateLimitMax,
		KeepAliveInterval: cfg.KeepAliveInterval,
		Store:             store,
		Rehoster:          rehoster,
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("blog-orchestrator"))

	routes.SetupRoutes(router, deps, &extensions.NopAuthProvider{})

	log.Println("Starting the orchestrator server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
