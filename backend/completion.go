package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"regulaite-backend/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
	gapioption "google.golang.org/api/option"
)

// ErrNoCandidates is returned when a completion carries no text
var ErrNoCandidates = errors.New("completion returned no candidates")

// OpenAICompleter runs chat completions through the OpenAI API
type OpenAICompleter struct {
	client       openai.Client
	defaultModel string
	logger       *zap.Logger
}

// NewOpenAICompleter creates a chat completion backend. baseURL may be empty.
func NewOpenAICompleter(apiKey, baseURL, defaultModel string, logger *zap.Logger, extra ...option.RequestOption) *OpenAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAICompleter{
		client:       openai.NewClient(opts...),
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// Complete sends instructions as the system message and input as the user message
func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (models.Content, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.Instructions),
			openai.UserMessage(req.Input),
		},
		Model: shared.ChatModel(model),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return models.Content{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Content{}, ErrNoCandidates
	}

	choice := resp.Choices[0]
	if choice.FinishReason != "" && choice.FinishReason != "stop" {
		c.logger.Warn("Chat completion finished early", zap.String("finish_reason", choice.FinishReason))
	}
	return models.TextContent(choice.Message.Content), nil
}

// GeminiCompleter runs completions through the Gemini API
type GeminiCompleter struct {
	client       *genai.Client
	defaultModel string
	logger       *zap.Logger
}

// NewGeminiCompleter creates a Gemini completion backend
func NewGeminiCompleter(ctx context.Context, apiKey, defaultModel string, logger *zap.Logger) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, gapioption.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if defaultModel == "" {
		defaultModel = "gemini-1.5-pro"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiCompleter{client: client, defaultModel: defaultModel, logger: logger}, nil
}

// Close releases the underlying client
func (g *GeminiCompleter) Close() error {
	return g.client.Close()
}

// Complete sends instructions as the system instruction and input as the prompt
func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (models.Content, error) {
	name := req.Model
	if name == "" || strings.HasPrefix(name, "gpt-") {
		name = g.defaultModel
	}

	model := g.client.GenerativeModel(name)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Instructions)}}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Input))
	if err != nil {
		return models.Content{}, fmt.Errorf("gemini generation failed: %w", err)
	}

	var sb strings.Builder
	for i, candidate := range resp.Candidates {
		if candidate.Content == nil {
			g.logger.Warn("Gemini candidate has no content",
				zap.Int("candidate", i),
				zap.String("finish_reason", candidate.FinishReason.String()))
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	if sb.Len() == 0 {
		return models.Content{}, ErrNoCandidates
	}
	return models.TextContent(sb.String()), nil
}
