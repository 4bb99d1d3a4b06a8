package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"regulaite-backend/models"

	"go.uber.org/zap"
)

// Run states reported by the agent service
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
	RunExpired   = "expired"
	RunTimedOut  = "timed_out"
)

var ErrMissingRunIDs = errors.New("run response is missing thread or run id")

// RunStatusError reports a run that ended in a non-completed state
type RunStatusError struct {
	Status string
	Detail string
}

func (e *RunStatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("run ended with status=%s: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("run ended with status=%s", e.Status)
}

// HTTPError reports a non-2xx response from a backend
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Body)
}

// FoundryAgent calls a published Azure AI Foundry agent: it creates a
// thread and run in one request, polls the run, then reads the newest
// assistant message.
type FoundryAgent struct {
	endpoint     string
	assistantID  string
	apiVersion   string
	tokens       TokenSource
	httpClient   *http.Client
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
}

// AgentOption configures a FoundryAgent
type AgentOption func(*FoundryAgent)

// AgentWithAPIVersion sets the api-version query parameter
func AgentWithAPIVersion(v string) AgentOption {
	return func(a *FoundryAgent) {
		if v != "" {
			a.apiVersion = v
		}
	}
}

// AgentWithTokenSource sets the bearer token source
func AgentWithTokenSource(ts TokenSource) AgentOption {
	return func(a *FoundryAgent) {
		a.tokens = ts
	}
}

// AgentWithHTTPClient sets the HTTP client
func AgentWithHTTPClient(c *http.Client) AgentOption {
	return func(a *FoundryAgent) {
		a.httpClient = c
	}
}

// AgentWithPolling sets the poll interval and overall run timeout
func AgentWithPolling(interval, timeout time.Duration) AgentOption {
	return func(a *FoundryAgent) {
		if interval > 0 {
			a.pollInterval = interval
		}
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// AgentWithLogger sets the logger
func AgentWithLogger(logger *zap.Logger) AgentOption {
	return func(a *FoundryAgent) {
		a.logger = logger
	}
}

// NewFoundryAgent creates an agent client for endpoint and assistantID
func NewFoundryAgent(endpoint, assistantID string, opts ...AgentOption) *FoundryAgent {
	a := &FoundryAgent{
		endpoint:     strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		assistantID:  strings.TrimSpace(assistantID),
		apiVersion:   "v1",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: 600 * time.Millisecond,
		timeout:      90 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type runResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Thread   struct {
		ID string `json:"id"`
	} `json:"thread"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

// failureDetail describes why a run ended, from its last_error
func (r runResponse) failureDetail() string {
	if r.LastError == nil {
		return ""
	}
	switch {
	case r.LastError.Code != "" && r.LastError.Message != "":
		return r.LastError.Code + ": " + r.LastError.Message
	case r.LastError.Message != "":
		return r.LastError.Message
	default:
		return r.LastError.Code
	}
}

type agentMessage struct {
	Role    json.RawMessage `json:"role"`
	Content models.Content  `json:"content"`
}

func (m agentMessage) role() string {
	var s string
	if err := json.Unmarshal(m.Role, &s); err == nil {
		return s
	}
	return string(m.Role)
}

// Ask sends userText as a single-turn request and returns the newest
// assistant message content. A thread with no assistant message gives
// empty content and no error.
func (a *FoundryAgent) Ask(ctx context.Context, userText string) (models.Content, error) {
	var token string
	if a.tokens != nil {
		t, err := a.tokens.Token(ctx)
		if err != nil {
			return models.Content{}, err
		}
		token = t
	}

	reqBody := map[string]interface{}{
		"assistant_id": a.assistantID,
		"thread": map[string]interface{}{
			"messages": []map[string]string{
				{"role": "user", "content": userText},
			},
		},
	}

	var run runResponse
	if err := a.do(ctx, http.MethodPost, "/threads/runs", token, reqBody, &run); err != nil {
		return models.Content{}, fmt.Errorf("failed to create run: %w", err)
	}

	threadID := run.ThreadID
	if threadID == "" {
		threadID = run.Thread.ID
	}
	if threadID == "" || run.ID == "" {
		return models.Content{}, ErrMissingRunIDs
	}
	a.logger.Debug("Agent run created", zap.String("thread_id", threadID), zap.String("run_id", run.ID))

	if err := a.waitForRun(ctx, threadID, run.ID, token); err != nil {
		return models.Content{}, err
	}

	return a.latestAssistantMessage(ctx, threadID, token)
}

func (a *FoundryAgent) waitForRun(ctx context.Context, threadID, runID, token string) error {
	deadline := time.Now().Add(a.timeout)
	path := fmt.Sprintf("/threads/%s/runs/%s", url.PathEscape(threadID), url.PathEscape(runID))

	status := ""
	for time.Now().Before(deadline) {
		var run runResponse
		if err := a.do(ctx, http.MethodGet, path, token, nil, &run); err != nil {
			return fmt.Errorf("failed to poll run: %w", err)
		}
		status = run.Status

		switch status {
		case RunCompleted:
			return nil
		case RunFailed, RunCancelled, RunExpired:
			return &RunStatusError{Status: status, Detail: run.failureDetail()}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}

	return &RunStatusError{
		Status: RunTimedOut,
		Detail: fmt.Sprintf("timed out after %s (last status=%s)", a.timeout, status),
	}
}

func (a *FoundryAgent) latestAssistantMessage(ctx context.Context, threadID, token string) (models.Content, error) {
	var payload struct {
		Data     []json.RawMessage `json:"data"`
		Messages []json.RawMessage `json:"messages"`
	}
	path := fmt.Sprintf("/threads/%s/messages", url.PathEscape(threadID))
	if err := a.do(ctx, http.MethodGet, path, token, nil, &payload); err != nil {
		return models.Content{}, fmt.Errorf("failed to list messages: %w", err)
	}

	raw := payload.Data
	if len(raw) == 0 {
		raw = payload.Messages
	}

	var messages []agentMessage
	for _, item := range raw {
		var m agentMessage
		if err := json.Unmarshal(item, &m); err != nil {
			continue
		}
		messages = append(messages, m)
	}

	// Listing is newest first
	for _, m := range messages {
		if m.role() == "assistant" {
			return m.Content, nil
		}
	}
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.role()), "assistant") {
			return m.Content, nil
		}
	}
	a.logger.Debug("Thread has no assistant message", zap.String("thread_id", threadID), zap.Int("messages", len(messages)))
	return models.Content{}, nil
}

func (a *FoundryAgent) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	u := fmt.Sprintf("%s%s?api-version=%s", a.endpoint, path, url.QueryEscape(a.apiVersion))
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(bodyBytes), 500)}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
