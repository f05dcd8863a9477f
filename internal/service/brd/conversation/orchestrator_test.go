package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqforge/internal/config"
	"reqforge/internal/domain/models/brd"
	domainllm "reqforge/internal/domain/services/llm"
	"reqforge/internal/metrics"
	brdservice "reqforge/internal/service/brd"
	"reqforge/internal/service/brd/brdtest"
	"reqforge/internal/service/brd/parser"
	"reqforge/internal/service/brd/prompt"
)

type sentEvent struct {
	Event   string
	Payload any
}

type recorder struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recorder) Send(event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{event, payload})
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

func (r *recorder) last(event string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event == event {
			return r.events[i].Payload
		}
	}
	return nil
}

type roomRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *roomRecorder) Broadcast(projectID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, projectID+":"+event)
}

type fakeGenerator struct {
	store   *brdtest.Store
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, promptText, model string, maxAttempts int) (string, error) {
	g.store.Record("generate")
	g.prompts = append(g.prompts, promptText)
	return g.reply, g.err
}

type fakeScraper struct {
	text string
	err  error
	urls []string
}

func (s *fakeScraper) Scrape(ctx context.Context, url string) (string, error) {
	s.urls = append(s.urls, url)
	return s.text, s.err
}

type staticTemplates struct{}

func (staticTemplates) InstructionsFor(id brd.TemplateType) string {
	return "SECTIONS FOR " + string(id)
}

type fixture struct {
	store   *brdtest.Store
	gen     *fakeGenerator
	scraper *fakeScraper
	rooms   *roomRecorder
	metrics *metrics.Metrics
	orch    *Orchestrator
	project *brd.Project
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	store := brdtest.NewStore()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		store:   store,
		gen:     &fakeGenerator{store: store},
		scraper: &fakeScraper{},
		rooms:   &roomRecorder{},
		metrics: m,
	}
	f.orch = NewOrchestrator(Deps{
		Projects:  store.Projects(),
		Documents: store.Documents(),
		Turns:     store.Turns(),
		Uploads:   store.Uploads(),
		Tx:        store.Tx(),
		Templates: staticTemplates{},
		Assembler: prompt.NewAssembler(config.ContextCharBudget, 6),
		Generator: f.gen,
		Parser:    parser.New(config.FallbackMessageLimit),
		Scraper:   f.scraper,
		Rooms:     f.rooms,
		Metrics:   m,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Options{Model: "test-model", MaxAttempts: 2, HistoryWindow: 6, ConflictPolicy: policy})
	f.project = store.SeedProject("user-1", "Shop", brd.TemplateAgile)
	return f
}

func (f *fixture) request(message string) TurnRequest {
	return TurnRequest{ProjectID: f.project.ID, UserID: "user-1", Message: message}
}

func TestHandleMessage_DocumentUpdateIsStoredAndBroadcast(t *testing.T) {
	f := newFixture(t, "")
	f.gen.reply = "```json\n" + `{"message":"Drafted","suggestions":[{"text":"Add KPIs"}],"documentUpdate":"# BRD\n\n## Overview"}` + "\n```"
	req := &recorder{}

	err := f.orch.HandleMessage(context.Background(), req, f.request("draft an overview"))
	require.NoError(t, err)

	doc := f.store.Document(f.project.ID)
	require.NotNil(t, doc)
	assert.Equal(t, brd.MarkdownContent("# BRD\n\n## Overview"), doc.Content)
	assert.Equal(t, int64(1), doc.Version)

	assert.Equal(t, []string{f.project.ID + ":" + brd.EventDocumentUpdated}, f.rooms.calls)
	assert.Equal(t, []string{brd.EventAIResponse}, req.names())

	resp := req.last(brd.EventAIResponse).(brd.AIResponsePayload)
	assert.Equal(t, "Drafted", resp.Message)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "Add KPIs", resp.Suggestions[0].Text)

	turns := f.store.TurnsFor(f.project.ID)
	require.Len(t, turns, 2)
	assert.Equal(t, brd.RoleUser, turns[0].Role)
	assert.Equal(t, "draft an overview", turns[0].Content)
	assert.Equal(t, brd.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Drafted", turns[1].Content)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Turns.WithLabelValues(metrics.OutcomeOK)))
}

func TestHandleMessage_DocumentUpdateRefreshesConflicts(t *testing.T) {
	f := newFixture(t, "")
	prior := brd.MarkdownContent("# BRD\n## Goals\n- Launch in Q1\n- Launch in Q2")
	conflicts := brdservice.DetectConflicts(prior)
	require.Len(t, conflicts, 1)
	conflicts[0].Status = brd.ConflictIgnored
	conflicts = append(conflicts, brd.Conflict{ID: "stale", Type: "value_mismatch", Status: brd.ConflictOpen})
	require.NoError(t, f.store.Documents().Upsert(context.Background(), &brd.Document{
		ProjectID: f.project.ID,
		Content:   prior,
		Conflicts: conflicts,
	}, nil))

	f.gen.reply = `{"message":"Added budget","suggestions":[],"documentUpdate":"# BRD\n## Goals\n- Launch in Q1\n- Launch in Q2\n- Budget is $5,000\n- Budget is $8,000"}`
	err := f.orch.HandleMessage(context.Background(), &recorder{}, f.request("add the budget"))
	require.NoError(t, err)

	doc := f.store.Document(f.project.ID)
	require.NotNil(t, doc)
	require.Len(t, doc.Conflicts, 2)

	byID := map[string]brd.Conflict{}
	for _, c := range doc.Conflicts {
		byID[c.ID] = c
	}
	assert.NotContains(t, byID, "stale")
	assert.Equal(t, brd.ConflictIgnored, byID[conflicts[0].ID].Status)
	for id, c := range byID {
		if id != conflicts[0].ID {
			assert.Equal(t, brd.ConflictOpen, c.Status)
			assert.Contains(t, c.Description, "$5,000")
		}
	}
}

func TestHandleMessage_UserTurnPersistedBeforeGeneration(t *testing.T) {
	f := newFixture(t, "")
	f.gen.err = errors.New("provider down")

	_ = f.orch.HandleMessage(context.Background(), &recorder{}, f.request("hello"))

	journal := f.store.Journal()
	require.GreaterOrEqual(t, len(journal), 2)
	assert.Equal(t, "turn.append.user", journal[0])
	assert.Equal(t, "generate", journal[1])
}

func TestHandleMessage_NullUpdateLeavesDocumentAlone(t *testing.T) {
	f := newFixture(t, "")
	f.gen.reply = `{"message":"first","suggestions":[],"documentUpdate":"# v1"}`
	require.NoError(t, f.orch.HandleMessage(context.Background(), &recorder{}, f.request("one")))
	before := f.store.Document(f.project.ID)

	f.gen.reply = `{"message":"just chatting","suggestions":[],"documentUpdate":null}`
	req := &recorder{}
	require.NoError(t, f.orch.HandleMessage(context.Background(), req, f.request("two")))

	assert.Equal(t, before, f.store.Document(f.project.ID))
	assert.Len(t, f.rooms.calls, 1, "only the first turn broadcasts")
	assert.Equal(t, []string{brd.EventAIResponse}, req.names())
}

func TestHandleMessage_GenerationFailure(t *testing.T) {
	f := newFixture(t, "")
	f.gen.err = &domainllm.GenerationError{Attempts: 2, Err: errors.New("503")}
	req := &recorder{}

	err := f.orch.HandleMessage(context.Background(), req, f.request("hello"))

	require.Error(t, err)
	assert.Equal(t, []string{brd.EventError}, req.names())
	assert.Equal(t, msgAIUnavailable, req.last(brd.EventError).(brd.ErrorPayload).Message)
	assert.Empty(t, f.rooms.calls)
	assert.Nil(t, f.store.Document(f.project.ID))

	turns := f.store.TurnsFor(f.project.ID)
	require.Len(t, turns, 1, "no assistant turn on AI failure")
	assert.Equal(t, brd.RoleUser, turns[0].Role)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Turns.WithLabelValues(metrics.OutcomeAIFailed)))
}

func TestHandleMessage_NoCredentials(t *testing.T) {
	f := newFixture(t, "")
	f.gen.err = domainllm.ErrNoCredentials
	req := &recorder{}

	_ = f.orch.HandleMessage(context.Background(), req, f.request("hello"))

	assert.Equal(t, msgAINotConfigured, req.last(brd.EventError).(brd.ErrorPayload).Message)
}

func TestHandleMessage_PersistFailureKeepsUserTurn(t *testing.T) {
	f := newFixture(t, "")
	f.gen.reply = `{"message":"ok","suggestions":[],"documentUpdate":"# new"}`
	f.store.Fail["document.upsert"] = errors.New("disk full")
	req := &recorder{}

	err := f.orch.HandleMessage(context.Background(), req, f.request("hello"))

	require.Error(t, err)
	assert.Equal(t, []string{brd.EventError}, req.names())
	assert.Equal(t, msgPersistReply, req.last(brd.EventError).(brd.ErrorPayload).Message)
	assert.Empty(t, f.rooms.calls)
	assert.Equal(t, brd.RoleUser, f.store.TurnsFor(f.project.ID)[0].Role)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Turns.WithLabelValues(metrics.OutcomePersistFailed)))
}

func TestHandleMessage_UserTurnFailureStopsBeforeGeneration(t *testing.T) {
	f := newFixture(t, "")
	f.store.Fail["turn.append.user"] = errors.New("db down")
	req := &recorder{}

	_ = f.orch.HandleMessage(context.Background(), req, f.request("hello"))

	assert.Empty(t, f.gen.prompts)
	assert.Equal(t, msgSaveMessage, req.last(brd.EventError).(brd.ErrorPayload).Message)
}

func TestHandleMessage_UnknownProject(t *testing.T) {
	f := newFixture(t, "")
	req := &recorder{}

	err := f.orch.HandleMessage(context.Background(), req, TurnRequest{ProjectID: f.project.ID, UserID: "someone-else", Message: "hi"})

	require.Error(t, err)
	assert.Equal(t, msgProjectNotFound, req.last(brd.EventError).(brd.ErrorPayload).Message)
	assert.Empty(t, f.store.TurnsFor(f.project.ID))
}

func shortProjectRetry(t *testing.T) {
	t.Helper()
	prev := projectRetryDelay
	projectRetryDelay = time.Millisecond
	t.Cleanup(func() { projectRetryDelay = prev })
}

func TestHandleMessage_TransientProjectReadIsRetried(t *testing.T) {
	shortProjectRetry(t)
	f := newFixture(t, "")
	f.gen.reply = `{"message":"noted","suggestions":[],"documentUpdate":null}`
	f.store.FailNext("project.get", errors.New("connection reset"), 2)
	req := &recorder{}

	err := f.orch.HandleMessage(context.Background(), req, f.request("keep this"))

	require.NoError(t, err)
	assert.Equal(t, []string{brd.EventAIResponse}, req.names())
	turns := f.store.TurnsFor(f.project.ID)
	require.Len(t, turns, 2)
	assert.Equal(t, "keep this", turns[0].Content)
}

func TestHandleMessage_ProjectReadKeepsFailing(t *testing.T) {
	shortProjectRetry(t)
	f := newFixture(t, "")
	f.store.Fail["project.get"] = errors.New("connection reset")
	req := &recorder{}

	err := f.orch.HandleMessage(context.Background(), req, f.request("hi"))

	require.Error(t, err)
	assert.Equal(t, msgLoadContext, req.last(brd.EventError).(brd.ErrorPayload).Message)
	assert.Empty(t, f.store.TurnsFor(f.project.ID))
	assert.Empty(t, f.gen.prompts)
}

func TestHandleMessage_RejectsEmptyMessage(t *testing.T) {
	f := newFixture(t, "")
	req := &recorder{}

	err := f.orch.HandleMessage(context.Background(), req, f.request(""))

	require.Error(t, err)
	assert.Equal(t, []string{brd.EventError}, req.names())
	assert.Empty(t, f.store.TurnsFor(f.project.ID))
}

func TestHandleMessage_ProseReplyDegrades(t *testing.T) {
	f := newFixture(t, "")
	f.gen.reply = "I think the scope is fine."
	req := &recorder{}

	require.NoError(t, f.orch.HandleMessage(context.Background(), req, f.request("thoughts?")))

	resp := req.last(brd.EventAIResponse).(brd.AIResponsePayload)
	assert.Equal(t, "I think the scope is fine.", resp.Message)
	assert.Empty(t, resp.Suggestions)
	assert.Nil(t, resp.DocumentUpdate)
	assert.Empty(t, f.rooms.calls)
}

func TestHandleMessage_ScrapeInjectsContext(t *testing.T) {
	f := newFixture(t, "")
	f.scraper.text = "Competitor sells widgets"
	f.gen.reply = `{"message":"noted","suggestions":[],"documentUpdate":null}`
	req := &recorder{}

	require.NoError(t, f.orch.HandleMessage(context.Background(), req, f.request("/scrape competitor.com")))

	assert.Equal(t, []string{"https://competitor.com"}, f.scraper.urls)
	assert.Equal(t, []string{brd.EventNotice, brd.EventAIResponse}, req.names())
	assert.Equal(t, brd.NoticeScraping, req.events[0].Payload.(brd.NoticePayload).Kind)
	require.Len(t, f.gen.prompts, 1)
	assert.Contains(t, f.gen.prompts[0], "Competitor sells widgets")

	// The stored user turn is what the user typed
	assert.Equal(t, "/scrape competitor.com", f.store.TurnsFor(f.project.ID)[0].Content)
}

func TestHandleMessage_ScrapeFailureContinues(t *testing.T) {
	f := newFixture(t, "")
	f.scraper.err = errors.New("timeout")
	f.gen.reply = `{"message":"ok","suggestions":[],"documentUpdate":null}`
	req := &recorder{}

	require.NoError(t, f.orch.HandleMessage(context.Background(), req, f.request("/research https://x.com list features")))

	assert.Equal(t, []string{brd.EventNotice, brd.EventNotice, brd.EventAIResponse}, req.names())
	assert.Equal(t, brd.NoticeScrapeFailed, req.events[1].Payload.(brd.NoticePayload).Kind)
	assert.Contains(t, f.gen.prompts[0], `User Input: "list features"`)
}

func TestHandleMessage_PromptCarriesContext(t *testing.T) {
	f := newFixture(t, "")
	f.gen.reply = `{"message":"first reply","suggestions":[],"documentUpdate":null}`
	require.NoError(t, f.orch.HandleMessage(context.Background(), &recorder{}, f.request("first question")))
	require.NoError(t, f.orch.HandleMessage(context.Background(), &recorder{}, f.request("second question")))

	second := f.gen.prompts[1]
	assert.Contains(t, second, "SECTIONS FOR agile")
	assert.Contains(t, second, prompt.NoDocumentPlaceholder)
	assert.Contains(t, second, "User: first question")
	assert.Contains(t, second, "Assistant: first reply")
	assert.NotContains(t, second, "User: second question", "the current message is not repeated as history")
}

func TestAcceptSuggestion(t *testing.T) {
	f := newFixture(t, "")
	f.gen.reply = `{"message":"applied","suggestions":[],"documentUpdate":"# with KPIs"}`
	req := &recorder{}

	require.NoError(t, f.orch.AcceptSuggestion(context.Background(), req, f.project.ID, "user-1", "Add KPIs"))

	turns := f.store.TurnsFor(f.project.ID)
	assert.Equal(t, "apply suggestion: Add KPIs", turns[0].Content)
	assert.Contains(t, f.gen.prompts[0], `User Input: "apply suggestion: Add KPIs"`)
	assert.Len(t, f.rooms.calls, 1)
}

func TestHandleMessage_OptimisticConflict(t *testing.T) {
	f := newFixture(t, config.ConflictPolicyOptimistic)
	f.gen.reply = `{"message":"v1","suggestions":[],"documentUpdate":"# v1"}`
	require.NoError(t, f.orch.HandleMessage(context.Background(), &recorder{}, f.request("one")))

	// Another writer bumps the version while the next turn is generating
	racer := &racingGenerator{inner: f.gen, onGenerate: func() {
		doc := f.store.Document(f.project.ID)
		doc.Content = brd.MarkdownContent("# manual edit")
		require.NoError(t, f.store.Documents().Upsert(context.Background(), doc, nil))
	}}
	f.orch.Generator = racer
	f.gen.reply = `{"message":"v2","suggestions":[],"documentUpdate":"# v2"}`
	req := &recorder{}

	err := f.orch.HandleMessage(context.Background(), req, f.request("two"))

	require.Error(t, err)
	assert.Equal(t, msgDocumentConflict, req.last(brd.EventError).(brd.ErrorPayload).Message)
	assert.Equal(t, brd.MarkdownContent("# manual edit"), f.store.Document(f.project.ID).Content)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Turns.WithLabelValues(metrics.OutcomeConflict)))
}

func TestHandleMessage_LastWriterWins(t *testing.T) {
	f := newFixture(t, config.ConflictPolicyLastWriterWins)
	f.gen.reply = `{"message":"v1","suggestions":[],"documentUpdate":"# v1"}`
	require.NoError(t, f.orch.HandleMessage(context.Background(), &recorder{}, f.request("one")))

	racer := &racingGenerator{inner: f.gen, onGenerate: func() {
		doc := f.store.Document(f.project.ID)
		doc.Content = brd.MarkdownContent("# manual edit")
		require.NoError(t, f.store.Documents().Upsert(context.Background(), doc, nil))
	}}
	f.orch.Generator = racer
	f.gen.reply = `{"message":"v2","suggestions":[],"documentUpdate":"# v2"}`

	require.NoError(t, f.orch.HandleMessage(context.Background(), &recorder{}, f.request("two")))

	doc := f.store.Document(f.project.ID)
	assert.Equal(t, brd.MarkdownContent("# v2"), doc.Content)
	assert.Equal(t, int64(3), doc.Version)
}

type racingGenerator struct {
	inner      *fakeGenerator
	onGenerate func()
}

func (g *racingGenerator) Generate(ctx context.Context, promptText, model string, maxAttempts int) (string, error) {
	g.onGenerate()
	return g.inner.Generate(ctx, promptText, model, maxAttempts)
}
