package brd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqforge/internal/domain"
	models "reqforge/internal/domain/models/brd"
	brdSvc "reqforge/internal/domain/services/brd"
	domainllm "reqforge/internal/domain/services/llm"
	"reqforge/internal/service/brd/brdtest"
	"reqforge/internal/service/brd/parser"
	"reqforge/internal/service/brd/prompt"
	"reqforge/internal/templates"
)

type documentFixture struct {
	store   *brdtest.Store
	gen     *stubGenerator
	rooms   *roomRecorder
	svc     brdSvc.DocumentService
	project *models.Project
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	catalog, err := templates.NewCatalog(discardLogger())
	require.NoError(t, err)

	f := &documentFixture{
		store: brdtest.NewStore(),
		gen:   &stubGenerator{},
		rooms: &roomRecorder{},
	}
	f.project = f.store.SeedProject("user-1", "Shop", models.TemplateAgile)
	f.svc = NewDocumentService(DocumentDeps{
		Projects:    f.store.Projects(),
		Documents:   f.store.Documents(),
		Uploads:     f.store.Uploads(),
		Tx:          f.store.Tx(),
		Templates:   catalog,
		Assembler:   prompt.NewAssembler(15000, 6),
		Generator:   f.gen,
		Parser:      parser.New(2000),
		Rooms:       f.rooms,
		Model:       "test-model",
		MaxAttempts: 3,
		Logger:      discardLogger(),
	})
	return f
}

func TestGenerateDocument(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	f.gen.reply = `{"message":"Drafted","suggestions":[],"documentUpdate":"# Project Overview\n\nA shop."}`

	doc, err := f.svc.GenerateDocument(ctx, f.project.ID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), doc.Version)
	assert.Equal(t, models.MarkdownContent("# Project Overview\n\nA shop."), doc.Content)
	assert.Contains(t, f.gen.prompt, generateInstruction)
	assert.Contains(t, f.gen.prompt, "User Personas")

	stored, err := f.store.Projects().GetByID(ctx, f.project.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, stored.Status)

	require.Equal(t, 1, f.rooms.count())
	assert.Equal(t, models.EventDocumentUpdated, f.rooms.events[0].event)
}

func TestGenerateDocument_NoDocumentInReply(t *testing.T) {
	f := newDocumentFixture(t)
	f.gen.reply = "I need more information first."

	_, err := f.svc.GenerateDocument(context.Background(), f.project.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.Nil(t, f.store.Document(f.project.ID))
	assert.Zero(t, f.rooms.count())
}

func TestGenerateDocument_GenerationFailure(t *testing.T) {
	f := newDocumentFixture(t)
	f.gen.err = &domainllm.GenerationError{Attempts: 3, Err: errors.New("boom")}

	_, err := f.svc.GenerateDocument(context.Background(), f.project.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestGenerateDocument_NotOwner(t *testing.T) {
	f := newDocumentFixture(t)
	_, err := f.svc.GenerateDocument(context.Background(), f.project.ID, "intruder")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.gen.prompt)
}

func TestSaveDocument_VersionCheck(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	doc, err := f.svc.SaveDocument(ctx, f.project.ID, "user-1", &brdSvc.SaveDocumentRequest{
		Content: models.MarkdownContent("# v1"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	stale := int64(0)
	_, err = f.svc.SaveDocument(ctx, f.project.ID, "user-1", &brdSvc.SaveDocumentRequest{
		Content: models.MarkdownContent("# v2"),
		Version: &stale,
	})
	var conflict *domain.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.Actual)
	assert.ErrorIs(t, err, domain.ErrConflict)

	current := int64(1)
	doc, err = f.svc.SaveDocument(ctx, f.project.ID, "user-1", &brdSvc.SaveDocumentRequest{
		Content: models.MarkdownContent("# v2"),
		Version: &current,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)
	assert.Equal(t, 2, f.rooms.count())
}

func TestSaveDocument_RejectsEmptyContent(t *testing.T) {
	f := newDocumentFixture(t)
	_, err := f.svc.SaveDocument(context.Background(), f.project.ID, "user-1", &brdSvc.SaveDocumentRequest{
		Content: models.MarkdownContent("   "),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExportMarkdown(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	_, err := f.svc.ExportMarkdown(ctx, f.project.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.SaveDocument(ctx, f.project.ID, "user-1", &brdSvc.SaveDocumentRequest{
		Content: models.StructuredContent(map[string]any{"Scope": "Web only"}),
	})
	require.NoError(t, err)

	md, err := f.svc.ExportMarkdown(ctx, f.project.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "## Scope\n\nWeb only", md)
}

func TestUpdateConflictStatus(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	doc, err := f.svc.SaveDocument(ctx, f.project.ID, "user-1", &brdSvc.SaveDocumentRequest{
		Content: models.MarkdownContent("## Schedule\n\n- Launch in Q1\n- Launch in Q3"),
	})
	require.NoError(t, err)
	require.Len(t, doc.Conflicts, 1)
	id := doc.Conflicts[0].ID

	doc, err = f.svc.UpdateConflictStatus(ctx, f.project.ID, "user-1", id, models.ConflictResolved)
	require.NoError(t, err)
	assert.Equal(t, models.ConflictResolved, doc.Conflicts[0].Status)
	assert.Equal(t, models.ConflictResolved, f.store.Document(f.project.ID).Conflicts[0].Status)

	// A later edit that still contains the conflict keeps its triage status
	doc, err = f.svc.SaveDocument(ctx, f.project.ID, "user-1", &brdSvc.SaveDocumentRequest{
		Content: models.MarkdownContent("## Schedule\n\n- Launch in Q1\n- Launch in Q3\n- Owner: ops"),
	})
	require.NoError(t, err)
	require.Len(t, doc.Conflicts, 1)
	assert.Equal(t, models.ConflictResolved, doc.Conflicts[0].Status)

	_, err = f.svc.UpdateConflictStatus(ctx, f.project.ID, "user-1", "missing", models.ConflictIgnored)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.UpdateConflictStatus(ctx, f.project.ID, "user-1", id, "dismissed")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
