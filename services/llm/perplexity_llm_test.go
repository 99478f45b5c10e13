package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPerplexityClient(baseURL string) *PerplexityClient {
	return &PerplexityClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		model:      "sonar",
		apiKey:     "test-key",
	}
}

func TestPerplexityClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req perplexityChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sonar", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		resp := perplexityChatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: `{"title":"T"}`}})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := newTestPerplexityClient(srv.URL)
	got, err := client.Complete(context.Background(), CompletionRequest{
		System:      "system prompt",
		User:        "user prompt",
		MaxTokens:   4000,
		Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"T"}`, got)
}

func TestPerplexityClient_Complete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"rate limited"}`)
	}))
	defer srv.Close()

	client := newTestPerplexityClient(srv.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{User: "prompt"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestPerplexityClient_Complete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	client := newTestPerplexityClient(srv.URL)
	_, err := client.Complete(context.Background(), CompletionRequest{User: "prompt"})
	assert.ErrorContains(t, err, "unexpected Perplexity response format")
}

func TestOpenAIClient_CompleteStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req openaiChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := &OpenAIClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    srv.URL,
		model:      "gpt-4o",
		apiKey:     "test-key",
	}
	body, err := client.CompleteStream(context.Background(), CompletionRequest{
		System: "s", User: "u", MaxTokens: 4000, Temperature: 0.7,
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[DONE]")
}

func TestOpenAIClient_CompleteStream_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	client := &OpenAIClient{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    srv.URL,
		model:      "gpt-4o",
		apiKey:     "wrong",
	}
	_, err := client.CompleteStream(context.Background(), CompletionRequest{User: "u"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
