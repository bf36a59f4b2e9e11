package provider

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/pkg/openaiembed"
)

const openaiProviderName = "openai"

// OpenAIEmbedder adapts the OpenAI embeddings API to the embedding port.
type OpenAIEmbedder struct {
	client openaiembed.Client
}

func NewOpenAIEmbedder(client openaiembed.Client) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client}
}

func (e *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	vectors, err := e.client.Embed(ctx, texts)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	return vectors, nil
}

func classifyOpenAIError(err error) *boundary.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		be := boundary.FromHTTPStatus(boundary.SourceEmbedding, openaiProviderName, apiErr.StatusCode, apiErr.Error())
		be.Cause = err
		return be
	}
	return classifyTransportError(boundary.SourceEmbedding, openaiProviderName, err)
}
