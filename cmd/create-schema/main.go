package main

import (
	"context"

	"regulaite-backend/bootstrap"
	"regulaite-backend/config"

	"go.uber.org/zap"
)

const usersSQL = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    username VARCHAR(64) UNIQUE NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    display_name VARCHAR(255),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);`

const queryLogsSQL = `
CREATE TABLE IF NOT EXISTS query_logs (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    username VARCHAR(64) NOT NULL,
    query TEXT NOT NULL,
    mode VARCHAR(20) NOT NULL,
    backend VARCHAR(20) NOT NULL,
    strict BOOLEAN NOT NULL DEFAULT false,
    weak BOOLEAN NOT NULL DEFAULT false,
    status VARCHAR(20) NOT NULL CHECK (status IN ('answered', 'no_answer', 'config_error', 'backend_error')),
    attempts JSONB NOT NULL DEFAULT '[]'::jsonb,
    error_message TEXT,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);`

var indexSQL = []string{
	"CREATE INDEX IF NOT EXISTS idx_query_logs_username_created ON query_logs (username, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_query_logs_status ON query_logs (status)",
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if !config.LoadDotEnv() {
		logger.Warn("No .env file found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Database.URL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := bootstrap.OpenDatabase(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, usersSQL); err != nil {
		logger.Fatal("Failed to create users table", zap.Error(err))
	}
	logger.Info("✓ Created users table")

	if _, err := pool.Exec(ctx, queryLogsSQL); err != nil {
		logger.Fatal("Failed to create query_logs table", zap.Error(err))
	}
	logger.Info("✓ Created query_logs table")

	for _, stmt := range indexSQL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			logger.Fatal("Failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
	logger.Info("✓ Created indexes")
}
