package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("theailab.llm")

// CompletionRequest carries one chat completion call.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// DocumentClient returns one complete answer per call. Used for the
// search-augmented provider, which does not support streaming.
type DocumentClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// StreamClient starts a streamed completion and hands back the provider's
// raw event stream. The caller owns the reader and must close it.
type StreamClient interface {
	CompleteStream(ctx context.Context, req CompletionRequest) (io.ReadCloser, error)
}

// ImageClient generates a single image and returns its (temporary) URL.
type ImageClient interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// APIError is a non-success HTTP response from a provider. The body is
// retained so the failure surface carries the provider's own diagnostics.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// apiKeyFromEnv resolves a credential from the environment, falling back
// to a container secret file.
func apiKeyFromEnv(envVar, secretPath string) (string, error) {
	key := os.Getenv(envVar)
	if key != "" {
		return key, nil
	}
	keyBytes, err := os.ReadFile(secretPath)
	if err == nil {
		slog.Info("Read API key from container secret", "env", envVar)
		return strings.TrimSpace(string(keyBytes)), nil
	}
	return "", fmt.Errorf("%s environment variable not set", envVar)
}

// chatMessage is the wire shape shared by both completion providers.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
