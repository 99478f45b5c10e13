package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PerplexityClient calls the Perplexity sonar model for search-augmented
// completions. The API performs its own web retrieval and returns one
// complete document; it does not support streaming.
type PerplexityClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

type perplexityChatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
	Temperature float32       `json:"temperature"`
}

type perplexityChatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func NewPerplexityClient() (*PerplexityClient, error) {
	apiKey, err := apiKeyFromEnv("PERPLEXITY_API_KEY", "/run/secrets/perplexity_api_key")
	if err != nil {
		return nil, err
	}
	model := os.Getenv("PERPLEXITY_MODEL")
	if model == "" {
		model = "sonar"
	}
	baseURL := os.Getenv("PERPLEXITY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.perplexity.ai"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Perplexity client", "model", model)
	return &PerplexityClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
	}, nil
}

// Complete performs one blocking search-augmented completion and returns
// the answer text.
func (p *PerplexityClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "PerplexityClient.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", p.model))

	payload := perplexityChatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Stream:      false,
		Temperature: req.Temperature,
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to marshal request to Perplexity: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		p.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to create request to Perplexity: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Perplexity API call failed", "error", err)
		return "", fmt.Errorf("Perplexity API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to read response body from Perplexity: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: "Perplexity", StatusCode: resp.StatusCode, Body: string(respBody)}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		slog.Error("Perplexity returned an error", "status_code", resp.StatusCode, "response", string(respBody))
		return "", apiErr
	}

	var chatResp perplexityChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse JSON response from Perplexity", "error", err)
		return "", fmt.Errorf("failed to parse Perplexity response: %w", err)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("unexpected Perplexity response format: no message content")
	}

	slog.Debug("Received response from Perplexity",
		"chars", len(chatResp.Choices[0].Message.Content))
	return chatResp.Choices[0].Message.Content, nil
}

var _ DocumentClient = (*PerplexityClient)(nil)
