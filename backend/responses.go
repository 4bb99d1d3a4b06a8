package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"regulaite-backend/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
)

// ErrNoVectorStore is returned when a retrieval request names no store
var ErrNoVectorStore = errors.New("no vector store id")

// CompletionRequest is the backend-neutral shape of one completion call
type CompletionRequest struct {
	Instructions    string
	Input           string
	Model           string
	MaxOutputTokens int

	// Retrieval only
	VectorStoreID string
	TopK          int
}

// ResponsesClient calls the OpenAI Responses API with the file_search tool
type ResponsesClient struct {
	client       openai.Client
	defaultModel string
	logger       *zap.Logger
}

type responsesConfig struct {
	requestOpts  []option.RequestOption
	defaultModel string
	logger       *zap.Logger
}

// ResponsesOption configures a ResponsesClient
type ResponsesOption func(*responsesConfig)

// ResponsesWithBaseURL overrides the API base URL
func ResponsesWithBaseURL(u string) ResponsesOption {
	return func(c *responsesConfig) {
		if u != "" {
			c.requestOpts = append(c.requestOpts, option.WithBaseURL(u))
		}
	}
}

// ResponsesWithModel sets the model used when a request names none
func ResponsesWithModel(model string) ResponsesOption {
	return func(c *responsesConfig) {
		if model != "" {
			c.defaultModel = model
		}
	}
}

// ResponsesWithRequestOptions appends raw client options (HTTP client, retries)
func ResponsesWithRequestOptions(opts ...option.RequestOption) ResponsesOption {
	return func(c *responsesConfig) {
		c.requestOpts = append(c.requestOpts, opts...)
	}
}

// ResponsesWithLogger sets the logger
func ResponsesWithLogger(logger *zap.Logger) ResponsesOption {
	return func(c *responsesConfig) {
		c.logger = logger
	}
}

// NewResponsesClient creates a Responses API client
func NewResponsesClient(apiKey string, opts ...ResponsesOption) *ResponsesClient {
	cfg := &responsesConfig{
		requestOpts:  []option.RequestOption{option.WithAPIKey(apiKey)},
		defaultModel: "gpt-4.1-mini",
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &ResponsesClient{
		client:       openai.NewClient(cfg.requestOpts...),
		defaultModel: cfg.defaultModel,
		logger:       cfg.logger,
	}
}

// Complete runs one file_search-augmented response and returns the
// assistant message parts
func (c *ResponsesClient) Complete(ctx context.Context, req CompletionRequest) (models.Content, error) {
	if strings.TrimSpace(req.VectorStoreID) == "" {
		return models.Content{}, ErrNoVectorStore
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	fileSearch := responses.ToolParamOfFileSearch([]string{req.VectorStoreID})
	if req.TopK > 0 && fileSearch.OfFileSearch != nil {
		fileSearch.OfFileSearch.MaxNumResults = openai.Int(int64(req.TopK))
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Input)},
		Tools: []responses.ToolUnionParam{fileSearch},
	}
	if strings.TrimSpace(req.Instructions) != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return models.Content{}, fmt.Errorf("responses call failed: %w", err)
	}

	var parts []models.ContentPart
	for _, item := range resp.Output {
		if strings.TrimSpace(item.Type) != "message" {
			continue
		}
		for _, part := range item.Content {
			parts = append(parts, models.ContentPart{Type: part.Type, Text: part.Text})
		}
	}
	c.logger.Debug("Responses API call completed",
		zap.String("status", string(resp.Status)),
		zap.Int("parts", len(parts)))

	return models.PartsContent(parts...), nil
}
