package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"futurecast/internal/chatbot"
	"futurecast/internal/config"
	"futurecast/internal/forecast"
	"futurecast/internal/llm"
)

func keylessConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	cfg := config.DefaultConfig()
	cfg.APIKey = ""
	cfg.EnableCaching = false
	return cfg
}

func TestBuildEngineWithoutKey(t *testing.T) {
	logger = zap.NewNop()

	_, err := buildEngine(context.Background(), keylessConfig(t), nil)
	assert.ErrorIs(t, err, llm.ErrNoAPIKey)
}

// Loading a saved cast must not require a key: the chat opens and only the
// model-backed requests answer with the missing-key error.
func TestViewOnlyEngineKeepsChatUsable(t *testing.T) {
	logger = zap.NewNop()

	tree := forecast.NewTree("Remote work becomes the default")
	tree.AddRootEffect(forecast.NewEffect("Office vacancies rise", 1, ""))

	state := chatbot.NewState()
	state.LoadFuturecast(tree.Context, tree, "Cities adapt to emptier downtowns.")
	dispatcher := chatbot.NewDispatcher(state, viewOnlyEngine(keylessConfig(t)))

	t.Run("state reads need no model", func(t *testing.T) {
		resp := dispatcher.Dispatch(context.Background(), "show me the tree")
		assert.Contains(t, resp, "Office vacancies rise")
	})

	t.Run("questions report the missing key", func(t *testing.T) {
		resp := dispatcher.Dispatch(context.Background(), "Which industries benefit most?")
		require.Contains(t, resp, "Error interacting with LLM")
		assert.Contains(t, resp, llm.ErrNoAPIKey.Error())
	})
}
