package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"regulaite-backend/bootstrap"
	"regulaite-backend/config"
	"regulaite-backend/models"
	"regulaite-backend/service"

	"go.uber.org/zap"
)

// Reads one question from stdin, resolves it in research mode and prints
// the answer record as JSON.
func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	logger, err := bootstrap.NewLogger(config.ServerConfig{LogFormat: "console", LogLevel: "warn"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Web search stays off for the command-line runner
	cfg.Search.Enabled = false

	ctx := context.Background()
	answers, cleanup, err := bootstrap.AnswerService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize answer backends", zap.Error(err))
	}
	defer cleanup()

	fmt.Fprint(os.Stderr, "Ask: ")
	query, err := readQuestion(os.Stdin)
	if err != nil {
		logger.Fatal("Failed to read question", zap.Error(err))
	}

	rec, err := run(ctx, answers, query, os.Stdout)
	if err != nil {
		logger.Fatal("Failed to write answer", zap.Error(err))
	}
	if rec == nil {
		os.Exit(2)
	}
}

type resolver interface {
	ResolveAnswer(ctx context.Context, req service.ResolveAnswerRequest) *service.ResolveAnswerResult
}

func readQuestion(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// run resolves query and writes the indented record JSON to w. An empty
// query writes nothing and returns a nil record.
func run(ctx context.Context, answers resolver, query string, w io.Writer) (*models.AnswerRecord, error) {
	if query == "" {
		return nil, nil
	}

	result := answers.ResolveAnswer(ctx, service.ResolveAnswerRequest{
		Query:         query,
		History:       []models.ConversationTurn{},
		RetrievalTopK: 6,
		EvidenceMode:  true,
		ModeHint:      string(service.ModeResearch),
		Username:      "dev",
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result.Answer); err != nil {
		return nil, err
	}
	return result.Answer, nil
}
