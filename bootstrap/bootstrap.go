// Package bootstrap builds the runtime components shared by the server and
// the command-line tools from a loaded config.Config.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"regulaite-backend/backend"
	"regulaite-backend/config"
	"regulaite-backend/service"
	"regulaite-backend/storage"
	"regulaite-backend/websearch"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from LOG_FORMAT ("json" or "console") and LOG_LEVEL
func NewLogger(cfg config.ServerConfig) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(cfg.LogFormat, "console") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	return zc.Build()
}

// OpenDatabase connects to Postgres. It returns a nil pool when no URL is configured.
func OpenDatabase(ctx context.Context, url string, logger *zap.Logger) (*pgxpool.Pool, error) {
	if url == "" {
		logger.Info("DATABASE_URL not set, running without user store and query log")
		return nil, nil
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Postgres connection established")
	return pool, nil
}

// NewStorage creates the chat history store
func NewStorage(cfg config.StorageConfig) (storage.Storage, error) {
	return storage.NewStorage(storage.StorageConfig{
		Type:         storage.StorageType(strings.ToLower(cfg.Type)),
		LocalPath:    cfg.LocalPath,
		S3Bucket:     cfg.S3Bucket,
		S3Region:     cfg.S3Region,
		S3Prefix:     cfg.S3Prefix,
		AWSAccessKey: cfg.AWSAccessKey,
		AWSSecretKey: cfg.AWSSecretKey,
	})
}

// AnswerService wires the configured backends into an answer service.
// The returned cleanup releases backend clients and must be called on shutdown.
func AnswerService(ctx context.Context, cfg *config.Config, logger *zap.Logger, extra ...service.AnswerServiceOption) (*service.AnswerService, func(), error) {
	opts := []service.AnswerServiceOption{
		service.AnswerWithLogger(logger),
		service.AnswerWithPolicy(service.ParseBackendPolicy(cfg.BackendPolicy)),
		service.AnswerWithDefaultTopK(cfg.Retrieval.TopK),
	}
	cleanup := func() {}

	switch missing := cfg.AgentMissing(); {
	case len(missing) > 0:
		logger.Warn("Agent backend is partially configured", zap.Strings("missing", missing))
		opts = append(opts, service.AnswerWithAgentMissing(missing))
	case cfg.AgentConfigured():
		agent, err := newAgent(cfg.Agent, logger)
		if err != nil {
			return nil, cleanup, err
		}
		opts = append(opts, service.AnswerWithAgent(agent))
		logger.Info("Agent backend enabled", zap.String("endpoint", cfg.Agent.Endpoint))
	}

	if cfg.OpenAI.APIKey != "" {
		var respOpts []backend.ResponsesOption
		if cfg.OpenAI.BaseURL != "" {
			respOpts = append(respOpts, backend.ResponsesWithBaseURL(cfg.OpenAI.BaseURL))
		}
		respOpts = append(respOpts,
			backend.ResponsesWithModel(cfg.OpenAI.ResponsesModel),
			backend.ResponsesWithLogger(logger),
		)
		opts = append(opts,
			service.AnswerWithRetrieval(backend.NewResponsesClient(cfg.OpenAI.APIKey, respOpts...), cfg.OpenAI.VectorStoreID),
			service.AnswerWithCompleter(backend.NewOpenAICompleter(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, logger)),
		)
		logger.Info("OpenAI backends enabled", zap.Bool("default_store", cfg.OpenAI.VectorStoreID != ""))
	} else {
		if cfg.OpenAI.VectorStoreID != "" {
			opts = append(opts, service.AnswerWithDefaultStore(cfg.OpenAI.VectorStoreID))
		}
		if cfg.Gemini.APIKey != "" {
			gemini, err := backend.NewGeminiCompleter(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
			if err != nil {
				return nil, cleanup, fmt.Errorf("failed to initialize Gemini: %w", err)
			}
			cleanup = func() { gemini.Close() }
			opts = append(opts, service.AnswerWithCompleter(gemini))
			logger.Info("Gemini completion backend enabled", zap.String("model", cfg.Gemini.Model))
		}
	}

	if cfg.Search.Enabled {
		opts = append(opts, service.AnswerWithSearcher(websearch.NewDuckDuckGo(
			websearch.WithTimeout(cfg.Search.Timeout),
			websearch.WithLogger(logger),
		)))
	}

	opts = append(opts, extra...)
	return service.NewAnswerService(opts...), cleanup, nil
}

func newAgent(cfg config.AgentConfig, logger *zap.Logger) (*backend.FoundryAgent, error) {
	var tokens backend.TokenSource
	if cfg.Token != "" {
		tokens = backend.StaticToken(cfg.Token)
	} else {
		azure, err := backend.NewAzureTokenSource()
		if err != nil {
			return nil, err
		}
		tokens = azure
	}

	return backend.NewFoundryAgent(cfg.Endpoint, cfg.AssistantID,
		backend.AgentWithAPIVersion(cfg.APIVersion),
		backend.AgentWithTokenSource(tokens),
		backend.AgentWithPolling(cfg.PollInterval, cfg.Timeout),
		backend.AgentWithLogger(logger),
	), nil
}
