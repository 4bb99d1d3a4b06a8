package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"regulaite-backend/backend"
	"regulaite-backend/models"
	"regulaite-backend/websearch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAgent struct {
	content models.Content
	err     error
	panics  bool
	inputs  []string
}

func (f *fakeAgent) Ask(_ context.Context, userText string) (models.Content, error) {
	f.inputs = append(f.inputs, userText)
	if f.panics {
		panic("agent exploded")
	}
	return f.content, f.err
}

type fakeCompleter struct {
	content models.Content
	err     error
	reqs    []backend.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req backend.CompletionRequest) (models.Content, error) {
	f.reqs = append(f.reqs, req)
	return f.content, f.err
}

type fakeSearcher struct {
	results []websearch.Result
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxResults int) []websearch.Result {
	f.queries = append(f.queries, query)
	if len(f.results) > maxResults {
		return f.results[:maxResults]
	}
	return f.results
}

type fakeQueryLog struct {
	entries []*models.QueryLog
	err     error
}

func (f *fakeQueryLog) Create(ctx context.Context, entry *models.QueryLog) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.entries = append(f.entries, entry)
	return f.err
}

const longAnswer = "## Large exposures\n\nCBB caps exposure to a single counterparty at 25% of the capital base, " +
	"and any exposure of 10% or more is a large exposure that needs board approval and reporting."

func newTestService(t *testing.T, opts ...AnswerServiceOption) *AnswerService {
	return NewAnswerService(append([]AnswerServiceOption{AnswerWithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func TestResolveAnswerNoBackends(t *testing.T) {
	svc := newTestService(t)

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "What is the limit?"})

	assert.Equal(t, models.NoAnswerText, res.Answer.Narrative())
	assert.Equal(t, BackendNone, res.Backend)
	assert.Equal(t, models.QueryStatusNoAnswer, res.Status)
	assert.False(t, res.Weak)
	assert.Empty(t, res.Attempts)
}

func TestResolveAnswerAgentAnswered(t *testing.T) {
	agent := &fakeAgent{content: models.TextContent(`{"raw_markdown": "` + "## Large exposures\\n\\nCBB caps exposure at 25% of capital base for a single counterparty; large exposures start at 10% and need board approval." + `"}`)}
	completer := &fakeCompleter{}
	svc := newTestService(t, AnswerWithAgent(agent), AnswerWithCompleter(completer))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "What is the CBB limit?"})

	assert.Equal(t, BackendAgent, res.Backend)
	assert.Equal(t, models.QueryStatusAnswered, res.Status)
	assert.Contains(t, res.Answer.Narrative(), "## Large exposures\n\nCBB caps")
	assert.Len(t, res.Answer.FollowUpSuggestions, 6)
	assert.False(t, res.Weak)
	assert.Empty(t, completer.reqs)
	require.Len(t, agent.inputs, 1)
	assert.Equal(t, "What is the CBB limit?", agent.inputs[0])
}

func TestResolveAnswerAgentFailedExclusive(t *testing.T) {
	agent := &fakeAgent{err: &backend.RunStatusError{Status: backend.RunFailed, Detail: "rate limited"}}
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t, AnswerWithAgent(agent), AnswerWithCompleter(completer))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "What is the limit?"})

	md := res.Answer.Narrative()
	assert.Contains(t, md, "### Backend error")
	assert.Contains(t, md, "Status: failed")
	assert.Equal(t, models.QueryStatusBackendErr, res.Status)
	assert.Empty(t, res.Answer.FollowUpSuggestions)
	assert.Empty(t, completer.reqs)
}

func TestResolveAnswerAgentEmptyExclusive(t *testing.T) {
	agent := &fakeAgent{content: models.TextContent("  ")}
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t, AnswerWithAgent(agent), AnswerWithCompleter(completer))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q"})

	assert.Equal(t, models.NoAnswerText, res.Answer.Narrative())
	assert.Equal(t, models.QueryStatusNoAnswer, res.Status)
	assert.Empty(t, completer.reqs)
}

// userOnlyFoundry serves a completed run whose thread holds only the user message
func userOnlyFoundry(t *testing.T) *backend.FoundryAgent {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads/runs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"run_1","thread_id":"thread_1","status":"queued"}`))
	})
	mux.HandleFunc("GET /threads/thread_1/runs/run_1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"run_1","status":"completed"}`))
	})
	mux.HandleFunc("GET /threads/thread_1/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"role":"user","content":"question"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return backend.NewFoundryAgent(srv.URL, "asst_1",
		backend.AgentWithPolling(time.Millisecond, time.Second),
		backend.AgentWithLogger(zaptest.NewLogger(t)),
	)
}

func TestResolveAnswerAgentWithoutAssistantMessage(t *testing.T) {
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t, AnswerWithAgent(userOnlyFoundry(t)), AnswerWithCompleter(completer))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q"})

	assert.Equal(t, models.NoAnswerText, res.Answer.Narrative())
	assert.Equal(t, models.QueryStatusNoAnswer, res.Status)
	assert.NotContains(t, res.Answer.Narrative(), "Backend error")
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, outcomeEmpty, res.Attempts[0].Outcome)
	assert.Empty(t, completer.reqs)
}

func TestResolveAnswerAgentWithoutAssistantMessageBestEffort(t *testing.T) {
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t,
		AnswerWithAgent(userOnlyFoundry(t)),
		AnswerWithCompleter(completer),
		AnswerWithPolicy(PolicyBestEffort),
	)

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "What is the limit?"})

	assert.Equal(t, BackendCompletion, res.Backend)
	assert.Equal(t, longAnswer, res.Answer.Narrative())
}

func TestResolveAnswerBestEffortFallsThrough(t *testing.T) {
	agent := &fakeAgent{err: &backend.HTTPError{StatusCode: 500, Body: "oops"}}
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t,
		AnswerWithAgent(agent),
		AnswerWithCompleter(completer),
		AnswerWithPolicy(PolicyBestEffort),
	)

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "What is the limit?"})

	assert.Equal(t, BackendCompletion, res.Backend)
	assert.Equal(t, longAnswer, res.Answer.Narrative())
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, BackendAgent, res.Attempts[0].Backend)
	assert.Equal(t, outcomeError, res.Attempts[0].Outcome)
	assert.Contains(t, res.Attempts[0].Detail, "http_500")
	assert.Equal(t, outcomeAnswered, res.Attempts[1].Outcome)
}

func TestResolveAnswerConfigurationError(t *testing.T) {
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t,
		AnswerWithAgentMissing([]string{"AI_FOUNDRY_ASSISTANT_ID (or AZURE_EXISTING_AGENT_ID)"}),
		AnswerWithCompleter(completer),
		AnswerWithPolicy(PolicyBestEffort),
	)

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q"})

	md := res.Answer.Narrative()
	assert.Contains(t, md, "### Configuration error")
	assert.Contains(t, md, "AI_FOUNDRY_ASSISTANT_ID (or AZURE_EXISTING_AGENT_ID)")
	assert.Equal(t, models.QueryStatusConfigError, res.Status)
	assert.Empty(t, completer.reqs)
}

func TestResolveAnswerStrictQuery(t *testing.T) {
	completer := &fakeCompleter{content: models.TextContent("CM-5.2")}
	searcher := &fakeSearcher{results: []websearch.Result{{Title: "t", URL: "https://example.com"}}}
	svc := newTestService(t, AnswerWithCompleter(completer), AnswerWithSearcher(searcher))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{
		Query:           "return only the section id, nothing else",
		WebEnabled:      true,
		EvidenceMode:    true,
		ModeHint:        "short",
		ApplyLengthNote: true,
	})

	require.NotNil(t, res.Answer.RawMarkdown)
	assert.Equal(t, "CM-5.2", *res.Answer.RawMarkdown)
	assert.Empty(t, res.Answer.FollowUpSuggestions)
	assert.True(t, res.Strict)
	assert.Empty(t, searcher.queries)

	require.Len(t, completer.reqs, 1)
	req := completer.reqs[0]
	assert.Equal(t, "return only the section id, nothing else", req.Input)
	assert.Contains(t, req.Instructions, plainTextContract)
	assert.NotContains(t, req.Instructions, evidenceDirective)
	assert.Equal(t, MaxOutputTokens(ModeShort), req.MaxOutputTokens)
}

func TestResolveAnswerRetrievalEmptyFallsBackToCompletion(t *testing.T) {
	retrieval := &fakeCompleter{content: models.PartsContent()}
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t,
		AnswerWithRetrieval(retrieval, "vs_default"),
		AnswerWithCompleter(completer),
		AnswerWithDefaultTopK(6),
	)

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q", ModeHint: "research"})

	assert.Equal(t, BackendCompletion, res.Backend)
	require.Len(t, retrieval.reqs, 1)
	assert.Equal(t, "vs_default", retrieval.reqs[0].VectorStoreID)
	assert.Equal(t, 6, retrieval.reqs[0].TopK)
	assert.Equal(t, MaxOutputTokens(ModeResearch), retrieval.reqs[0].MaxOutputTokens)
	assert.Contains(t, retrieval.reqs[0].Instructions, "Top-K hint: 6")
	require.Len(t, completer.reqs, 1)
	assert.Empty(t, completer.reqs[0].VectorStoreID)
}

func TestResolveAnswerRetrievalRequestStoreOverridesDefault(t *testing.T) {
	retrieval := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t, AnswerWithRetrieval(retrieval, "vs_default"))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{
		Query:            "q",
		RetrievalStoreID: " vs_request ",
		RetrievalTopK:    3,
	})

	assert.Equal(t, BackendRetrieval, res.Backend)
	assert.Equal(t, "vs_request", retrieval.reqs[0].VectorStoreID)
	assert.Equal(t, 3, retrieval.reqs[0].TopK)
}

func TestResolveAnswerStoreWithoutClientIsSkipped(t *testing.T) {
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	svc := newTestService(t, AnswerWithDefaultStore("vs_1"), AnswerWithCompleter(completer))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q"})

	assert.Equal(t, BackendCompletion, res.Backend)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, BackendRetrieval, res.Attempts[0].Backend)
	assert.Equal(t, outcomeSkipped, res.Attempts[0].Outcome)
}

func TestResolveAnswerWebSnippets(t *testing.T) {
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	searcher := &fakeSearcher{results: []websearch.Result{
		{Title: "Large exposures", URL: "https://www.bis.org/bcbs/publ/d283.htm", Snippet: "Final standard"},
		{Title: "Second", URL: "https://example.com/2"},
	}}
	svc := newTestService(t, AnswerWithCompleter(completer), AnswerWithSearcher(searcher))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "Basel large exposures", WebEnabled: true})

	assert.Equal(t, BackendCompletion, res.Backend)
	assert.Equal(t, []string{"Basel large exposures"}, searcher.queries)
	input := completer.reqs[0].Input
	assert.Contains(t, input, "Web snippets")
	assert.Contains(t, input, "1. Large exposures (https://www.bis.org/bcbs/publ/d283.htm)\n   Final standard")
	assert.Contains(t, input, "2. Second (https://example.com/2)")
}

func TestResolveAnswerWebDisabled(t *testing.T) {
	completer := &fakeCompleter{content: models.TextContent(longAnswer)}
	searcher := &fakeSearcher{results: []websearch.Result{{Title: "t", URL: "u"}}}
	svc := newTestService(t, AnswerWithCompleter(completer), AnswerWithSearcher(searcher))

	svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q"})

	assert.Empty(t, searcher.queries)
	assert.NotContains(t, completer.reqs[0].Input, "Web snippets")
}

func TestResolveAnswerCompletionErrorGivesNoAnswer(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("quota exceeded")}
	svc := newTestService(t, AnswerWithCompleter(completer))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q"})

	assert.Equal(t, models.NoAnswerText, res.Answer.Narrative())
	assert.Equal(t, BackendNone, res.Backend)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, outcomeError, res.Attempts[0].Outcome)
}

func TestResolveAnswerKeepsBackendFollowUps(t *testing.T) {
	completer := &fakeCompleter{content: models.TextContent(`{"raw_markdown": "x", "follow_up_suggestions": ["Ask about KRIs"]}`)}
	svc := newTestService(t, AnswerWithCompleter(completer))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q"})

	assert.Equal(t, []string{"Ask about KRIs"}, res.Answer.FollowUpSuggestions)
	assert.True(t, res.Weak)
}

func TestResolveAnswerHistoryAndLengthNote(t *testing.T) {
	agent := &fakeAgent{content: models.TextContent(longAnswer)}
	svc := newTestService(t, AnswerWithAgent(agent))

	history := []models.ConversationTurn{
		{Role: models.RoleUser, Content: "What is a large exposure?"},
		{Role: models.RoleAssistant, Content: "An exposure of 10% or more."},
		{Role: models.RoleUser, Content: "And the cap?"},
	}
	svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{
		Query:           "And the cap?",
		History:         history,
		ModeHint:        "short",
		ApplyLengthNote: true,
	})

	require.Len(t, agent.inputs, 1)
	assert.Equal(t,
		"Conversation brief (oldest first):\n"+
			"user: What is a large exposure?\n"+
			"assistant: An exposure of 10% or more.\n\n"+
			"User query:\n"+
			"And the cap?\n\n(Please answer concisely in 4–7 bullets or ~120–180 words.)",
		agent.inputs[0])
}

func TestResolveAnswerRecoversPanic(t *testing.T) {
	svc := newTestService(t, AnswerWithAgent(&fakeAgent{panics: true}))

	res := svc.ResolveAnswer(context.Background(), ResolveAnswerRequest{Query: "q"})

	require.NotNil(t, res)
	assert.Contains(t, res.Answer.Narrative(), "### Error")
	assert.Contains(t, res.Answer.Narrative(), "agent exploded")
	assert.Equal(t, models.QueryStatusBackendErr, res.Status)
}

func TestResolveAnswerWritesQueryLog(t *testing.T) {
	logs := &fakeQueryLog{}
	agent := &fakeAgent{err: &backend.RunStatusError{Status: backend.RunExpired}}
	svc := newTestService(t, AnswerWithAgent(agent), AnswerWithQueryLogger(logs))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.ResolveAnswer(ctx, ResolveAnswerRequest{Query: "q", Username: "analyst", ModeHint: "deep"})

	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	assert.Equal(t, "analyst", entry.Username)
	assert.Equal(t, "q", entry.Query)
	assert.Equal(t, string(ModeResearch), entry.Mode)
	assert.Equal(t, BackendAgent, entry.Backend)
	assert.Equal(t, models.QueryStatusBackendErr, entry.Status)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "expired")
	assert.Len(t, entry.Attempts, 1)
}

func TestParseBackendPolicy(t *testing.T) {
	assert.Equal(t, PolicyBestEffort, ParseBackendPolicy(" Best-Effort "))
	assert.Equal(t, PolicyBestEffort, ParseBackendPolicy("fallthrough"))
	assert.Equal(t, PolicyExclusive, ParseBackendPolicy(""))
	assert.Equal(t, PolicyExclusive, ParseBackendPolicy("exclusive"))
}
