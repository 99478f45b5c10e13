package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// DalleClient generates blog hero images with DALL-E 3.
//
// A token-bucket limiter throttles outbound calls so bursts of concurrent
// runs cannot trip the image API's rate limits.
type DalleClient struct {
	client  *openai.Client
	limiter *rate.Limiter
	model   string
}

func NewDalleClient() (*DalleClient, error) {
	apiKey, err := apiKeyFromEnv("OPENAI_API_KEY", "/run/secrets/openai_api_key")
	if err != nil {
		return nil, err
	}
	model := os.Getenv("IMAGE_MODEL")
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	slog.Info("Initializing DALL-E image client", "model", model)
	return &DalleClient{
		client:  openai.NewClient(apiKey),
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 2),
		model:   model,
	}, nil
}

// GenerateImage requests one 16:9 image and returns its temporary URL.
// The URL expires provider-side; durable storage is the rehoster's job.
func (d *DalleClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "DalleClient.GenerateImage")
	defer span.End()

	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("image rate limiter wait: %w", err)
	}

	resp, err := d.client.CreateImage(ctx, openai.ImageRequest{
		Model:   d.model,
		Prompt:  prompt,
		Size:    openai.CreateImageSize1792x1024,
		Quality: openai.CreateImageQualityStandard,
		N:       1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("DALL-E image generation failed", "error", err)
		return "", fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("image generation returned no URL")
	}

	slog.Debug("Generated image", "model", d.model)
	return resp.Data[0].URL, nil
}

var _ ImageClient = (*DalleClient)(nil)
