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

// OpenAIClient streams chat completions from the OpenAI API.
//
// The response body is returned raw so the pipeline's stream consumer can
// apply its own fragment-level failure budget and progress reporting; the
// SDK's stream wrapper would hide the individual fragments.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

type openaiChatRequest struct {
	Model          string                `json:"model"`
	Messages       []chatMessage         `json:"messages"`
	MaxTokens      int                   `json:"max_tokens"`
	Stream         bool                  `json:"stream"`
	Temperature    float32               `json:"temperature"`
	ResponseFormat *openaiRespFormatSpec `json:"response_format,omitempty"`
}

type openaiRespFormatSpec struct {
	Type string `json:"type"`
}

func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey, err := apiKeyFromEnv("OPENAI_API_KEY", "/run/secrets/openai_api_key")
	if err != nil {
		return nil, err
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o")
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing OpenAI streaming client", "model", model)
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		model:      model,
		apiKey:     apiKey,
	}, nil
}

// CompleteStream starts a streamed chat completion and returns the raw
// SSE body. A JSON-object response format is requested so the accumulated
// output parses as a single object.
func (o *OpenAIClient) CompleteStream(ctx context.Context, req CompletionRequest) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.CompleteStream")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	payload := openaiChatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:      req.MaxTokens,
		Stream:         true,
		Temperature:    req.Temperature,
		ResponseFormat: &openaiRespFormatSpec{Type: "json_object"},
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to marshal request to OpenAI: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		o.baseURL+"/v1/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create request to OpenAI: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("OpenAI API call failed", "error", err)
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		apiErr := &APIError{Provider: "OpenAI", StatusCode: resp.StatusCode, Body: string(respBody)}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		slog.Error("OpenAI returned an error", "status_code", resp.StatusCode, "response", string(respBody))
		return nil, apiErr
	}

	return resp.Body, nil
}

var _ StreamClient = (*OpenAIClient)(nil)
