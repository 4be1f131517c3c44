package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respondWithText(w http.ResponseWriter, text string) {
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]int{"totalTokenCount": 42},
	}
	json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, baseURL string) *GeminiClient {
	t.Helper()
	c, err := NewGeminiClientWithConfig(GeminiConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "gemini-2.0-flash",
		Timeout:     5 * time.Second,
		Temperature: 0.7,
		TopP:        0.95,
		TopK:        40,
	})
	require.NoError(t, err)
	return c
}

func TestGenerate(t *testing.T) {
	var gotReq GeminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		respondWithText(w, "  first\nsecond  ")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Generate(context.Background(), "the prompt")
	require.NoError(t, err)

	assert.Equal(t, "first\nsecond", resp)
	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "the prompt", gotReq.Contents[0].Parts[0].Text)
	assert.InDelta(t, 0.7, gotReq.GenerationConfig.Temperature, 1e-9)
	assert.InDelta(t, 0.95, gotReq.GenerationConfig.TopP, 1e-9)
	assert.Equal(t, 40, gotReq.GenerationConfig.TopK)
}

func TestGenerateRetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		respondWithText(w, "recovered")
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp)
	assert.Equal(t, 2, calls)
}

func TestGenerateFailsFastOnBadRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, 1, calls)
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":403,"message":"key revoked","status":"PERMISSION_DENIED"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key revoked")
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion")
}

func TestGenerateHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Generate(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClientWithConfig(GeminiConfig{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
