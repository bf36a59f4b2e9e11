package provider

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/sells-group/equity-snapshot/internal/boundary"
	"github.com/sells-group/equity-snapshot/pkg/anthropic"
)

const anthropicProviderName = "anthropic"

const summarizeSystemPrompt = `You are an equity research assistant. Summarize the provided news evidence for the symbol in at most 150 words. Stick strictly to what the evidence says; do not speculate or add outside knowledge.`

const synthesizeSystemPrompt = `You are an equity research analyst producing a structured research snapshot. Ground every claim in the labeled evidence provided and cite evidence labels inline. If evidence for a claim is missing, say so explicitly instead of inventing support. Respond with JSON only.`

// AnthropicLLM adapts the Anthropic messages API to the LLM port.
type AnthropicLLM struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicLLM(client anthropic.Client, model string, maxTokens int64) *AnthropicLLM {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicLLM{client: client, model: model, maxTokens: maxTokens}
}

func (l *AnthropicLLM) Summarize(ctx context.Context, prompt string) (string, error) {
	return l.complete(ctx, summarizeSystemPrompt, prompt, "normalize")
}

func (l *AnthropicLLM) Synthesize(ctx context.Context, prompt string) (string, error) {
	return l.complete(ctx, synthesizeSystemPrompt, prompt, "synthesize")
}

func (l *AnthropicLLM) complete(ctx context.Context, system, prompt, phase string) (string, error) {
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.model,
		MaxTokens: l.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(system),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}
	resp.Usage.LogCost(l.model, phase)

	text := resp.Text()
	if text == "" {
		return "", boundary.New(boundary.SourceLLM, boundary.CodeMalformedResponse, anthropicProviderName, "empty completion")
	}
	return text, nil
}

func classifyAnthropicError(err error) *boundary.Error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		be := boundary.FromHTTPStatus(boundary.SourceLLM, anthropicProviderName, apiErr.StatusCode, apiErr.Error())
		be.Cause = err
		return be
	}
	return classifyTransportError(boundary.SourceLLM, anthropicProviderName, err)
}
