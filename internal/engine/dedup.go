package engine

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/genai"

	"futurecast/internal/logging"
)

// Embedder produces one vector per input text. Tests fake this; production
// uses the Gemini embedding API via GenAIEmbedder.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenAIEmbedder embeds text with the Google GenAI SDK.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder creates an embedder for the given model.
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model}, nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (e *GenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}

// Deduper drops near-duplicate sibling effects by embedding similarity.
type Deduper struct {
	embedder  Embedder
	threshold float64
}

// NewDeduper creates a filter that drops candidates whose cosine
// similarity to an earlier-kept candidate is at or above threshold.
func NewDeduper(embedder Embedder, threshold float64) *Deduper {
	return &Deduper{embedder: embedder, threshold: threshold}
}

// Filter returns candidates with near-duplicates removed, preserving
// order. An embedding failure degrades to no filtering.
func (d *Deduper) Filter(ctx context.Context, candidates []string) []string {
	if d == nil || len(candidates) < 2 {
		return candidates
	}
	vectors, err := d.embedder.EmbedBatch(ctx, candidates)
	if err != nil || len(vectors) != len(candidates) {
		logging.Get(logging.CategoryEngine).Warn("dedup embedding failed, keeping all candidates: %v", err)
		return candidates
	}

	kept := make([]string, 0, len(candidates))
	keptVecs := make([][]float32, 0, len(candidates))
	for i, c := range candidates {
		dup := false
		for _, kv := range keptVecs {
			if cosineSimilarity(vectors[i], kv) >= d.threshold {
				dup = true
				break
			}
		}
		if dup {
			logging.EngineDebug("dropped near-duplicate effect: %s", c)
			continue
		}
		kept = append(kept, c)
		keptVecs = append(keptVecs, vectors[i])
	}
	return kept
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
