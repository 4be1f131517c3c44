package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"futurecast/internal/config"
	"futurecast/internal/forecast"
	"futurecast/internal/llm"
)

func TestMain(m *testing.M) {
	// opencensus (pulled in via google.golang.org/genai) starts a worker
	// goroutine in package init that can never be stopped.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeModel answers every effects prompt with a numbered list of unique
// texts and every summary/answer prompt with a fixed string.
type fakeModel struct {
	mu      sync.Mutex
	calls   int
	serial  int64
	prompts []string
}

func (f *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if strings.Contains(prompt, "comprehensive summary") {
		return "the summary", nil
	}
	if strings.Contains(prompt, "helpful assistant") {
		return "the answer", nil
	}
	var b strings.Builder
	for i := 1; i <= 2; i++ {
		fmt.Fprintf(&b, "%d. effect-%d\n", i, atomic.AddInt64(&f.serial, 1))
	}
	return b.String(), nil
}

func (f *fakeModel) Model() string { return "fake" }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.NumEffects = 2
	cfg.MaxDepth = 3
	cfg.MaxParallelCalls = 4
	return cfg
}

func TestGenerateShape(t *testing.T) {
	model := &fakeModel{}
	eng := New(model, testConfig())

	tree, summary, err := eng.Generate(context.Background(), "the scenario")
	require.NoError(t, err)

	assert.Equal(t, "the summary", summary)
	assert.Equal(t, "the scenario", tree.Context)

	byOrder := tree.EffectsByOrder()
	assert.Len(t, byOrder[1], 2)
	assert.Len(t, byOrder[2], 4)
	assert.Len(t, byOrder[3], 8)
	assert.Equal(t, 3, tree.MaxOrder())

	// Parent wiring is consistent everywhere.
	tree.Walk(func(e *forecast.Effect) bool {
		for _, c := range e.Children {
			assert.Equal(t, e.ID, c.ParentID)
			assert.Equal(t, e.Order+1, c.Order)
		}
		return true
	})

	// 1 first-order call + 2 second-order + 4 third-order + 1 summary.
	assert.Equal(t, 8, model.calls)
}

func TestGeneratePromptsCarryContext(t *testing.T) {
	model := &fakeModel{}
	eng := New(model, testConfig())

	_, _, err := eng.Generate(context.Background(), "the scenario")
	require.NoError(t, err)

	var thirdOrder []string
	for _, p := range model.prompts {
		if strings.Contains(p, "likely third-order effects") {
			thirdOrder = append(thirdOrder, p)
		}
	}
	require.NotEmpty(t, thirdOrder)
	for _, p := range thirdOrder {
		assert.Contains(t, p, "First-order effects that have already occurred:")
		assert.Contains(t, p, "Second-order effects that have already occurred:")
		assert.Contains(t, p, "Other concurrent effects")
	}
}

func TestGeneratePropagatesModelError(t *testing.T) {
	boom := errors.New("boom")
	client := llm.GenerateFunc(func(context.Context, string) (string, error) {
		return "", boom
	})
	eng := New(client, testConfig())

	_, _, err := eng.Generate(context.Background(), "s")
	assert.ErrorIs(t, err, boom)
}

func TestGenerateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := llm.GenerateFunc(func(ctx context.Context, _ string) (string, error) {
		return "", ctx.Err()
	})
	eng := New(client, testConfig())

	_, _, err := eng.Generate(ctx, "s")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpandEffect(t *testing.T) {
	model := &fakeModel{}
	cfg := testConfig()
	eng := New(model, cfg)

	tree := forecast.NewTree("scenario")
	root := forecast.NewEffect("root effect", 1, "")
	tree.AddRootEffect(root)

	t.Run("expands a leaf by two levels", func(t *testing.T) {
		err := eng.ExpandEffect(context.Background(), tree, root, 2, "supply chains")
		require.NoError(t, err)
		assert.Len(t, root.Children, 2)
		assert.Len(t, root.Children[0].Children, 2)
		assert.Equal(t, 3, tree.MaxOrder())

		found := false
		for _, p := range model.prompts {
			if strings.Contains(p, "Focus the effects specifically on: supply chains") {
				found = true
			}
		}
		assert.True(t, found, "focus should reach the prompt")
	})

	t.Run("rejects non-leaf", func(t *testing.T) {
		err := eng.ExpandEffect(context.Background(), tree, root, 1, "")
		assert.ErrorIs(t, err, ErrNotLeaf)
	})
}

func TestRegenerateDownstream(t *testing.T) {
	model := &fakeModel{}
	eng := New(model, testConfig())

	tree := forecast.NewTree("scenario")
	root := forecast.NewEffect("root", 1, "")
	tree.AddRootEffect(root)
	child := forecast.NewEffect("old child", 0, "")
	root.AddChild(child)
	child.AddChild(forecast.NewEffect("old grandchild", 0, ""))

	root.Content = "edited root"
	require.NoError(t, eng.RegenerateDownstream(context.Background(), tree, root))

	// Depth restored, old content gone, new content marked.
	assert.Equal(t, 3, tree.MaxOrder())
	assert.Nil(t, tree.FindEffect(child.ID))
	require.NotEmpty(t, root.Children)
	tree.Walk(func(e *forecast.Effect) bool {
		if e.ID != root.ID {
			assert.True(t, strings.HasSuffix(e.Content, RegeneratedMarker), "effect %q should carry the marker", e.Content)
		}
		return true
	})
}

func TestRegenerateDownstreamLeafStaysLeaf(t *testing.T) {
	model := &fakeModel{}
	eng := New(model, testConfig())

	tree := forecast.NewTree("scenario")
	leaf := forecast.NewEffect("leaf", 1, "")
	tree.AddRootEffect(leaf)

	require.NoError(t, eng.RegenerateDownstream(context.Background(), tree, leaf))
	assert.Empty(t, leaf.Children)
	assert.Zero(t, model.calls)
}

func TestParallelismIsBounded(t *testing.T) {
	var inFlight, peak int64
	client := llm.GenerateFunc(func(ctx context.Context, prompt string) (string, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		defer atomic.AddInt64(&inFlight, -1)
		if strings.Contains(prompt, "comprehensive summary") {
			return "summary", nil
		}
		return "1. x\n2. y", nil
	})

	cfg := testConfig()
	cfg.MaxParallelCalls = 2
	cfg.MaxDepth = 4
	eng := New(client, cfg)

	_, _, err := eng.Generate(context.Background(), "s")
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int64(2))
}
