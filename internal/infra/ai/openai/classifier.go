package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/haliard/binsight/internal/infra/ai/prompt"

	domain "github.com/haliard/binsight/internal/domain/scans"
)

const maxTokens = 2048

// Classifier implements the classification phase against an OpenAI chat
// model. The model is prompted with the full signal surface and must
// answer in strict JSON.
type Classifier struct {
	*openai.Client
	Model string
}

func NewClassifier(apiKey, model string) *Classifier {
	return &Classifier{Client: openai.NewClient(apiKey), Model: model}
}

func (c *Classifier) Classify(ctx context.Context, sa *domain.StaticAnalysis, da *domain.DynamicAnalysis, sig domain.SignalSummary) (*domain.Classification, error) {
	model := c.Model
	if model == "" {
		model = "o3-2025-04-16"
	}

	user, err := prompt.GetUserPrompt(sa, da, sig)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	var cls domain.Classification
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &cls); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}

	// normalize: the engine, not the model, owns ranking determinism
	if cls.Family != "" {
		candidates := append([]domain.FamilyScore{{Family: cls.Family, Confidence: cls.Confidence}}, cls.AlternativeFamilies...)
		primary, alternatives := domain.RankFamilies(candidates)
		cls.Family = primary.Family
		cls.Confidence = primary.Confidence
		cls.AlternativeFamilies = alternatives
	}
	return &cls, nil
}
