// Package completion adapts concrete LLM providers to the CompletionService
// contract consumed by the dialogue graph and the summarizer.
package completion

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/adam-npc/dialogue-core/internal/agent/model"
	logx "github.com/adam-npc/dialogue-core/pkg/logger"
)

// GeminiConfig holds what is needed to build the Gemini-backed service.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   model.ResponseModelConfig
}

// GeminiService implements model.CompletionService over the eino Gemini
// chat model.
type GeminiService struct {
	chatModel *gemini.ChatModel
	modelName string
}

// NewGeminiService creates the Gemini client and chat model.
func NewGeminiService(ctx context.Context, cfg GeminiConfig) (*GeminiService, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model.Model,
		Temperature: &cfg.Model.Temperature,
		MaxTokens:   &cfg.Model.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini chat model")
		return nil, fmt.Errorf("error creating Gemini chat model: %w", err)
	}

	return &GeminiService{chatModel: chatModel, modelName: cfg.Model.Model}, nil
}

// Complete runs one bounded completion. Callers own the ctx deadline and
// treat every error as recoverable.
func (s *GeminiService) Complete(ctx context.Context, messages []*schema.Message, maxTokens int) (string, error) {
	var opts []einomodel.Option
	if maxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(maxTokens))
	}

	out, err := s.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("gemini generate: nil message")
	}

	s.logUsage(out)
	return out.Content, nil
}

// logUsage records token usage and USD cost when the provider reports them.
func (s *GeminiService) logUsage(out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	pricing := model.ResolvePricing(s.modelName)
	inC, outC, totalC := model.ComputeCost(usage, pricing)

	logx.Debug().
		Str("model", s.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

var _ model.CompletionService = (*GeminiService)(nil)
