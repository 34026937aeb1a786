// Package llm calls the local Ollama generation endpoint for structured
// extraction and salary estimation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/skalra/auros/internal/model"
	"github.com/skalra/auros/internal/retry"
)

// generateTimeout bounds one generation call. Local models can be slow on
// long job descriptions.
const generateTimeout = 60 * time.Second

// Generator produces a raw model response for a prompt. Satisfied by
// *Client; test doubles stand in for it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client is an Ollama HTTP client.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the Ollama instance at baseURL.
func New(baseURL, modelName string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		model:      modelName,
		httpClient: httpClient,
		logger:     logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate posts prompt to /api/generate in JSON mode and returns the raw
// response text. Transient failures are retried; the caller is responsible
// for salvaging the (possibly malformed) JSON payload.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	op := func(ctx context.Context) (string, error) {
		reqCtx, cancel := context.WithTimeout(ctx, generateTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", &model.HTTPError{
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("ollama generate with model %s", c.model),
			}
		}

		var genResp generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
			return "", fmt.Errorf("decode generate response: %w", err)
		}
		return genResp.Response, nil
	}

	return retry.Do(ctx, retry.DefaultAttempts, retry.DefaultBaseDelay, isGenerateFailure, op)
}

// isGenerateFailure retries any HTTP status error or transient transport
// failure against the generation endpoint.
func isGenerateFailure(err error) bool {
	if model.IsTransient(err) {
		return true
	}
	var httpErr *model.HTTPError
	return errors.As(err, &httpErr)
}
