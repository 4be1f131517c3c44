// Package llm talks to the Google Gemini generateContent REST API and
// caches responses on disk.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"futurecast/internal/config"
	"futurecast/internal/logging"
)

// ErrNoAPIKey is returned when a request is attempted without a key.
var ErrNoAPIKey = errors.New("gemini API key not configured (set GEMINI_API_KEY)")

// Client is the surface the prediction engine needs from a model.
type Client interface {
	// Generate sends a prompt and returns the model's text response.
	Generate(ctx context.Context, prompt string) (string, error)
	// Model identifies the underlying model, for cache keying and logs.
	Model() string
}

// GenerateFunc adapts a function to the Client interface. Tests use this
// to fake model responses.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

func (f GenerateFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func (f GenerateFunc) Model() string { return "fake" }

// GeminiClient calls the Gemini generateContent endpoint directly.
type GeminiClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	temperature     float64
	topP            float64
	topK            int
	httpClient      *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// DefaultGeminiConfig returns client defaults for the given key and the
// sampling parameters from cfg.
func DefaultGeminiConfig(cfg *config.Config) GeminiConfig {
	return GeminiConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           cfg.Model,
		Timeout:         2 * time.Minute,
		MaxOutputTokens: 8192,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
	}
}

// NewGeminiClient creates a client from application config.
func NewGeminiClient(cfg *config.Config) (*GeminiClient, error) {
	return NewGeminiClientWithConfig(DefaultGeminiConfig(cfg))
}

// NewGeminiClientWithConfig creates a client with explicit options.
func NewGeminiClientWithConfig(gc GeminiConfig) (*GeminiClient, error) {
	if gc.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	model := strings.TrimSpace(gc.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	baseURL := gc.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	maxOutputTokens := gc.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = 8192
	}
	timeout := gc.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &GeminiClient{
		apiKey:          gc.APIKey,
		baseURL:         baseURL,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		temperature:     gc.Temperature,
		topP:            gc.TopP,
		topK:            gc.TopK,
		httpClient:      &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Params returns the sampling parameters, used for cache keying.
func (c *GeminiClient) Params() map[string]interface{} {
	return map[string]interface{}{
		"temperature": c.temperature,
		"top_p":       c.topP,
		"top_k":       c.topK,
	}
}

// Generate sends a prompt and returns the concatenated candidate text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.Get(logging.CategoryLLM).Debug("[Gemini] Generate: model=%s prompt_len=%d", c.model, len(prompt))

	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := GeminiRequest{
		Contents: []GeminiContent{
			{
				Role:  "user",
				Parts: []GeminiPart{{Text: prompt}},
			},
		},
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     c.temperature,
			TopP:            c.topP,
			TopK:            c.topK,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	// Retry loop for rate limits and transient failures
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var geminiResp GeminiResponse
		if err := json.Unmarshal(body, &geminiResp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if geminiResp.Error != nil {
			return "", fmt.Errorf("API error: %s", geminiResp.Error.Message)
		}
		if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		var result strings.Builder
		for _, part := range geminiResp.Candidates[0].Content.Parts {
			result.WriteString(part.Text)
		}
		response := strings.TrimSpace(result.String())

		logging.LLM("[Gemini] Generate: completed in %v response_len=%d tokens=%d",
			time.Since(startTime), len(response), geminiResp.UsageMetadata.TotalTokenCount)
		return response, nil
	}

	logging.LLMError("[Gemini] Generate: max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}
