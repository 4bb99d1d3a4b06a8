package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"regulaite-backend/backend"
	"regulaite-backend/models"
	"regulaite-backend/websearch"

	"go.uber.org/zap"
)

// Backend names reported on results, logs and metrics
const (
	BackendAgent      = "agent"
	BackendRetrieval  = "retrieval"
	BackendCompletion = "completion"
	BackendNone       = "none"
)

const maxWebSnippets = 5

// BackendPolicy decides what happens when a configured agent fails
type BackendPolicy string

const (
	// PolicyExclusive makes a configured agent the only path
	PolicyExclusive BackendPolicy = "exclusive"
	// PolicyBestEffort lets agent errors and empty results fall through
	PolicyBestEffort BackendPolicy = "best-effort"
)

// ParseBackendPolicy maps a setting to a policy; unknown values are exclusive
func ParseBackendPolicy(s string) BackendPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best-effort", "best_effort", "besteffort", "fallthrough":
		return PolicyBestEffort
	default:
		return PolicyExclusive
	}
}

// Agent is a managed agent backend
type Agent interface {
	Ask(ctx context.Context, userText string) (models.Content, error)
}

// Completer is a completion backend, with or without retrieval
type Completer interface {
	Complete(ctx context.Context, req backend.CompletionRequest) (models.Content, error)
}

// Searcher supplies web snippets for plain completions
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []websearch.Result
}

// QueryLogger records resolved queries
type QueryLogger interface {
	Create(ctx context.Context, entry *models.QueryLog) error
}

// AnswerService resolves a query against the configured backends
type AnswerService struct {
	agent          Agent
	agentMissing   []string
	retrieval      Completer
	defaultStoreID string
	completer      Completer
	searcher       Searcher
	queryLogs      QueryLogger
	policy         BackendPolicy
	defaultTopK    int
	logger         *zap.Logger
}

// AnswerServiceOption is a functional option for AnswerService
type AnswerServiceOption func(*AnswerService)

// AnswerWithAgent sets the managed agent backend
func AnswerWithAgent(agent Agent) AnswerServiceOption {
	return func(s *AnswerService) {
		s.agent = agent
	}
}

// AnswerWithAgentMissing marks the agent as partially configured; every
// resolution then returns a configuration error naming these settings
func AnswerWithAgentMissing(missing []string) AnswerServiceOption {
	return func(s *AnswerService) {
		s.agentMissing = missing
	}
}

// AnswerWithRetrieval sets the retrieval-augmented backend and its default store
func AnswerWithRetrieval(c Completer, defaultStoreID string) AnswerServiceOption {
	return func(s *AnswerService) {
		s.retrieval = c
		s.defaultStoreID = strings.TrimSpace(defaultStoreID)
	}
}

// AnswerWithDefaultStore sets the retrieval store used when a request names none
func AnswerWithDefaultStore(storeID string) AnswerServiceOption {
	return func(s *AnswerService) {
		s.defaultStoreID = strings.TrimSpace(storeID)
	}
}

// AnswerWithCompleter sets the plain completion backend
func AnswerWithCompleter(c Completer) AnswerServiceOption {
	return func(s *AnswerService) {
		s.completer = c
	}
}

// AnswerWithSearcher sets the web search collaborator
func AnswerWithSearcher(searcher Searcher) AnswerServiceOption {
	return func(s *AnswerService) {
		s.searcher = searcher
	}
}

// AnswerWithQueryLogger sets the audit log sink
func AnswerWithQueryLogger(ql QueryLogger) AnswerServiceOption {
	return func(s *AnswerService) {
		s.queryLogs = ql
	}
}

// AnswerWithPolicy sets the agent failure policy
func AnswerWithPolicy(p BackendPolicy) AnswerServiceOption {
	return func(s *AnswerService) {
		s.policy = p
	}
}

// AnswerWithDefaultTopK sets the top-K hint used when a request leaves it unset
func AnswerWithDefaultTopK(topK int) AnswerServiceOption {
	return func(s *AnswerService) {
		s.defaultTopK = topK
	}
}

// AnswerWithLogger sets the logger
func AnswerWithLogger(logger *zap.Logger) AnswerServiceOption {
	return func(s *AnswerService) {
		s.logger = logger
	}
}

// NewAnswerService creates a new answer service
func NewAnswerService(opts ...AnswerServiceOption) *AnswerService {
	s := &AnswerService{
		policy:      PolicyExclusive,
		defaultTopK: 8,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveAnswerRequest represents one query to resolve
type ResolveAnswerRequest struct {
	Query            string
	History          []models.ConversationTurn
	RetrievalTopK    int
	EvidenceMode     bool
	ModeHint         string // "" == absent
	WebEnabled       bool
	RetrievalStoreID string // "" == absent
	ModelName        string // "" == default

	// Append the answer-length note for the resolved mode to the text sent to backends
	ApplyLengthNote bool
	// Recorded in the query log
	Username string
}

// ResolveAnswerResult represents the outcome of a resolution
type ResolveAnswerResult struct {
	Answer   *models.AnswerRecord
	Backend  string
	Mode     Mode
	Strict   bool
	Weak     bool
	Status   models.QueryStatus
	Attempts models.BackendAttempts
}

// resolution carries per-query state through the backend chain
type resolution struct {
	req          ResolveAnswerRequest
	mode         Mode
	strict       bool
	topK         int
	instructions string
	userText     string
	attempts     models.BackendAttempts
	err          error
}

func (r *resolution) record(backendName, outcome, detail string) {
	r.attempts = append(r.attempts, models.BackendAttempt{Backend: backendName, Outcome: outcome, Detail: detail})
	backendAttempts.WithLabelValues(backendName, outcome).Inc()
}

// ResolveAnswer runs the backend chain for a query. It never returns an
// error: failures are encoded as records with an error heading, and an
// exhausted chain yields NoAnswer.
func (s *AnswerService) ResolveAnswer(ctx context.Context, req ResolveAnswerRequest) (result *ResolveAnswerResult) {
	start := time.Now()

	mode := ResolveMode(req.ModeHint)
	strict := IsStrictQuery(req.Query)
	topK := req.RetrievalTopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	query := req.Query
	if req.ApplyLengthNote {
		query = ApplyLengthNote(query, mode)
	}

	r := &resolution{
		req:    req,
		mode:   mode,
		strict: strict,
		topK:   topK,
		instructions: BuildInstructionsFor(InstructionOptions{
			TopK:     topK,
			Evidence: req.EvidenceMode,
			Mode:     mode,
			Strict:   strict,
			Scenario: IsScenarioQuery(req.Query),
		}),
		userText: composeUserText(ConversationBrief(req.History, req.Query), query),
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Answer resolution panicked", zap.Any("panic", p))
			r.err = fmt.Errorf("internal error: %v", p)
			result = &ResolveAnswerResult{
				Answer:   errorRecord(r.err),
				Backend:  BackendNone,
				Mode:     mode,
				Strict:   strict,
				Status:   models.QueryStatusBackendErr,
				Attempts: r.attempts,
			}
		}
		resolveDuration.WithLabelValues(result.Backend).Observe(time.Since(start).Seconds())
		s.logQuery(ctx, r, result, time.Since(start))
	}()

	answer, backendName, status := s.runChain(ctx, r)

	result = &ResolveAnswerResult{
		Answer:   answer,
		Backend:  backendName,
		Mode:     mode,
		Strict:   strict,
		Status:   status,
		Attempts: r.attempts,
	}

	if status == models.QueryStatusAnswered {
		if !strict && len(answer.FollowUpSuggestions) == 0 {
			answer.FollowUpSuggestions = FollowUpSuggestions(req.Query)
		}
		result.Weak = IsWeakAnswer(answer)
		if result.Weak {
			weakAnswers.Inc()
		}
	}

	s.logger.Info("Answer resolved",
		zap.String("backend", backendName),
		zap.String("mode", string(mode)),
		zap.Bool("strict", strict),
		zap.String("status", string(status)),
		zap.Bool("weak", result.Weak),
		zap.Duration("duration", time.Since(start)))

	return result
}

// runChain tries agent, retrieval and plain completion in order
func (s *AnswerService) runChain(ctx context.Context, r *resolution) (*models.AnswerRecord, string, models.QueryStatus) {
	if len(s.agentMissing) > 0 {
		r.err = &ConfigurationError{Missing: s.agentMissing}
		r.record(BackendAgent, outcomeError, r.err.Error())
		return errorRecord(r.err), BackendAgent, models.QueryStatusConfigError
	}

	if s.agent != nil {
		rec, err := s.askAgent(ctx, r)
		switch {
		case err != nil && s.policy == PolicyExclusive:
			r.err = err
			return errorRecord(err), BackendAgent, models.QueryStatusBackendErr
		case err != nil:
			s.logger.Warn("Agent failed, falling through", zap.Error(err))
		case rec != nil:
			return rec, BackendAgent, models.QueryStatusAnswered
		case s.policy == PolicyExclusive:
			return models.NoAnswer(), BackendAgent, models.QueryStatusNoAnswer
		}
	}

	if rec := s.askRetrieval(ctx, r); rec != nil {
		return rec, BackendRetrieval, models.QueryStatusAnswered
	}

	if rec := s.askCompleter(ctx, r); rec != nil {
		return rec, BackendCompletion, models.QueryStatusAnswered
	}

	if len(r.attempts) == 0 {
		s.logger.Warn("No backend is configured")
	}
	return models.NoAnswer(), BackendNone, models.QueryStatusNoAnswer
}

// askAgent returns a non-empty record, nil for an empty result, or a BackendError
func (s *AnswerService) askAgent(ctx context.Context, r *resolution) (*models.AnswerRecord, error) {
	content, err := s.agent.Ask(ctx, r.userText)
	if err != nil {
		beErr := &BackendError{Backend: BackendAgent, Status: agentStatus(err), Err: err}
		r.record(BackendAgent, outcomeError, beErr.Error())
		s.logger.Warn("Agent call failed", zap.String("status", beErr.Status), zap.Error(err))
		return nil, beErr
	}

	rec := normalizeWithLogger(ExtractText(content), s.logger)
	if rec.IsEmpty() {
		r.record(BackendAgent, outcomeEmpty, "")
		return nil, nil
	}
	r.record(BackendAgent, outcomeAnswered, "")
	return rec, nil
}

// agentStatus names the terminal state of a failed agent call
func agentStatus(err error) string {
	var runErr *backend.RunStatusError
	if errors.As(err, &runErr) {
		return runErr.Status
	}
	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("http_%d", httpErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return backend.RunTimedOut
	}
	if errors.Is(err, context.Canceled) {
		return backend.RunCancelled
	}
	return "error"
}

func (s *AnswerService) askRetrieval(ctx context.Context, r *resolution) *models.AnswerRecord {
	storeID := strings.TrimSpace(r.req.RetrievalStoreID)
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if storeID == "" {
		return nil
	}
	if s.retrieval == nil {
		r.record(BackendRetrieval, outcomeSkipped, "retrieval store set but no client configured")
		s.logger.Warn("Retrieval store configured without a retrieval client", zap.String("store_id", storeID))
		return nil
	}

	content, err := s.retrieval.Complete(ctx, backend.CompletionRequest{
		Instructions:    r.instructions,
		Input:           r.userText,
		Model:           r.req.ModelName,
		MaxOutputTokens: MaxOutputTokens(r.mode),
		VectorStoreID:   storeID,
		TopK:            r.topK,
	})
	if err != nil {
		r.record(BackendRetrieval, outcomeError, err.Error())
		s.logger.Warn("Retrieval backend failed, falling through", zap.Error(err))
		return nil
	}

	rec := normalizeWithLogger(ExtractText(content), s.logger)
	if rec.IsEmpty() {
		r.record(BackendRetrieval, outcomeEmpty, "")
		return nil
	}
	r.record(BackendRetrieval, outcomeAnswered, "")
	return rec
}

func (s *AnswerService) askCompleter(ctx context.Context, r *resolution) *models.AnswerRecord {
	if s.completer == nil {
		return nil
	}

	input := r.userText
	if !r.strict && r.req.WebEnabled && s.searcher != nil {
		if snippets := formatWebSnippets(s.searcher.Search(ctx, r.req.Query, maxWebSnippets)); snippets != "" {
			input = input + "\n\n" + snippets
		}
	}

	content, err := s.completer.Complete(ctx, backend.CompletionRequest{
		Instructions:    r.instructions,
		Input:           input,
		Model:           r.req.ModelName,
		MaxOutputTokens: MaxOutputTokens(r.mode),
	})
	if err != nil {
		r.record(BackendCompletion, outcomeError, err.Error())
		s.logger.Warn("Completion backend failed", zap.Error(err))
		return nil
	}

	rec := normalizeWithLogger(ExtractText(content), s.logger)
	if rec.IsEmpty() {
		r.record(BackendCompletion, outcomeEmpty, "")
		return nil
	}
	r.record(BackendCompletion, outcomeAnswered, "")
	return rec
}

// formatWebSnippets renders up to maxWebSnippets results in the searcher's order
func formatWebSnippets(results []websearch.Result) string {
	if len(results) == 0 {
		return ""
	}
	if len(results) > maxWebSnippets {
		results = results[:maxWebSnippets]
	}
	var b strings.Builder
	b.WriteString("Web snippets (secondary to document sources; cite the URL if used):\n")
	for i, res := range results {
		b.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, strings.TrimSpace(res.Title), strings.TrimSpace(res.URL)))
		if snippet := strings.TrimSpace(res.Snippet); snippet != "" {
			b.WriteString("   " + snippet + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *AnswerService) logQuery(ctx context.Context, r *resolution, result *ResolveAnswerResult, elapsed time.Duration) {
	if s.queryLogs == nil || result == nil {
		return
	}
	entry := &models.QueryLog{
		Username:   r.req.Username,
		Query:      r.req.Query,
		Mode:       string(result.Mode),
		Backend:    result.Backend,
		Strict:     result.Strict,
		Weak:       result.Weak,
		Status:     result.Status,
		Attempts:   result.Attempts,
		DurationMS: elapsed.Milliseconds(),
	}
	if r.err != nil {
		msg := r.err.Error()
		entry.ErrorMessage = &msg
	}
	if err := s.queryLogs.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("Failed to record query log", zap.Error(err))
	}
}
