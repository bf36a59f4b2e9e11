package openaiembed

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
)

// DefaultModel is the embedding model used unless overridden.
const DefaultModel = openai.EmbeddingModelTextEmbedding3Small

// Client computes text embeddings.
type Client interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type apiClient struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// Option configures the client.
type Option func(*apiClient)

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(c *apiClient) {
		c.model = openai.EmbeddingModel(model)
	}
}

// NewClient creates an OpenAI embeddings client.
func NewClient(apiKey string, opts ...Option) Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	c := &apiClient{client: &client, model: DefaultModel}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *apiClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: c.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: create embeddings")
	}
	if len(resp.Data) != len(texts) {
		return nil, eris.Errorf("openai: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float64, len(resp.Data))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, eris.Errorf("openai: embedding index %d out of range", idx)
		}
		vectors[idx] = item.Embedding
	}
	return vectors, nil
}
