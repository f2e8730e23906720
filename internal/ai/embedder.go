package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder produces fixed-length embedding vectors from an OpenAI-compatible
// embeddings API.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func NewEmbedder(baseURL, token, model string, logger *slog.Logger) (*Embedder, error) {
	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &Embedder{
		embedder: embedder,
		logger:   logger.With("component", "ai-embedder"),
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned empty result")
	}

	e.logger.Debug("embedding generated", "dimensions", len(vectors[0]))

	return vectors[0], nil
}
