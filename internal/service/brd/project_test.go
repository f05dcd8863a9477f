package brd

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqforge/internal/domain"
	models "reqforge/internal/domain/models/brd"
	brdSvc "reqforge/internal/domain/services/brd"
	"reqforge/internal/httputil"
	"reqforge/internal/service/brd/brdtest"
	"reqforge/internal/templates"
)

func newProjectFixture(t *testing.T) (*brdtest.Store, brdSvc.ProjectService) {
	t.Helper()
	catalog, err := templates.NewCatalog(discardLogger())
	require.NoError(t, err)
	store := brdtest.NewStore()
	svc := NewProjectService(store.Projects(), store.Documents(), store.Uploads(), catalog, discardLogger())
	return store, svc
}

func TestCreateProject(t *testing.T) {
	_, svc := newProjectFixture(t)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, &brdSvc.CreateProjectRequest{
		UserID:      "user-1",
		Name:        "  Checkout Revamp  ",
		Description: "New checkout flow",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "Checkout Revamp", project.Name)
	assert.Equal(t, models.TemplateComprehensive, project.TemplateType)
	assert.Equal(t, models.StatusDraft, project.Status)
}

func TestCreateProject_Validation(t *testing.T) {
	_, svc := newProjectFixture(t)

	tests := []struct {
		name string
		req  brdSvc.CreateProjectRequest
	}{
		{"blank name", brdSvc.CreateProjectRequest{UserID: "u", Name: "   "}},
		{"missing name", brdSvc.CreateProjectRequest{UserID: "u"}},
		{"long name", brdSvc.CreateProjectRequest{UserID: "u", Name: strings.Repeat("n", 256)}},
		{"unknown template", brdSvc.CreateProjectRequest{UserID: "u", Name: "P", TemplateType: "waterfall"}},
		{"no user", brdSvc.CreateProjectRequest{Name: "P"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.CreateProject(context.Background(), &req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestGetProject_PopulatesUploadsAndProgress(t *testing.T) {
	store, svc := newProjectFixture(t)
	ctx := context.Background()
	project := store.SeedProject("user-1", "Shop", models.TemplateAgile)

	got, err := svc.GetProject(ctx, project.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, &models.Progress{}, got.Progress)
	assert.Empty(t, got.Uploads)

	text := "notes"
	require.NoError(t, store.Uploads().Create(ctx, &models.Upload{ProjectID: project.ID, OriginalName: "a.txt", ExtractedText: &text}))
	require.NoError(t, store.Documents().Upsert(ctx, &models.Document{
		ProjectID: project.ID,
		Content:   models.MarkdownContent("# Project Overview\n\ntext\n\n## User Personas\n\n- buyer"),
	}, nil))

	got, err = svc.GetProject(ctx, project.ID, "user-1")
	require.NoError(t, err)
	require.Len(t, got.Uploads, 1)
	assert.Equal(t, "a.txt", got.Uploads[0].OriginalName)
	assert.Equal(t, &models.Progress{CompletionPercentage: 40, SectionsCompleted: 2, TotalSections: 5}, got.Progress)
}

func TestGetProject_OtherUser(t *testing.T) {
	store, svc := newProjectFixture(t)
	project := store.SeedProject("owner", "Shop", models.TemplateAgile)

	_, err := svc.GetProject(context.Background(), project.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListProjects_Empty(t *testing.T) {
	_, svc := newProjectFixture(t)
	projects, err := svc.ListProjects(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)
}

func TestUpdateProject_PatchSemantics(t *testing.T) {
	store, svc := newProjectFixture(t)
	ctx := context.Background()
	project := store.SeedProject("user-1", "Shop", models.TemplateAgile)

	status := models.StatusApproved
	got, err := svc.UpdateProject(ctx, project.ID, "user-1", &brdSvc.UpdateProjectRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Shop", got.Name)
	assert.Equal(t, models.TemplateAgile, got.TemplateType)
	assert.Equal(t, models.StatusApproved, got.Status)

	desc := "  a brief  "
	name := "Storefront"
	got, err = svc.UpdateProject(ctx, project.ID, "user-1", &brdSvc.UpdateProjectRequest{
		Name:        &name,
		Description: httputil.OptionalString{Present: true, Value: &desc},
	})
	require.NoError(t, err)
	assert.Equal(t, "Storefront", got.Name)
	assert.Equal(t, "a brief", got.Description)
	assert.Equal(t, models.StatusApproved, got.Status)

	got, err = svc.UpdateProject(ctx, project.ID, "user-1", &brdSvc.UpdateProjectRequest{
		Description: httputil.OptionalString{Present: true},
	})
	require.NoError(t, err)
	assert.Empty(t, got.Description)
}

func TestUpdateProject_Validation(t *testing.T) {
	store, svc := newProjectFixture(t)
	project := store.SeedProject("user-1", "Shop", models.TemplateAgile)

	blank := "  "
	bad := models.ProjectStatus("shipped")
	tmpl := models.TemplateType("waterfall")

	for _, req := range []*brdSvc.UpdateProjectRequest{
		{Name: &blank},
		{Status: &bad},
		{TemplateType: &tmpl},
	} {
		_, err := svc.UpdateProject(context.Background(), project.ID, "user-1", req)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestDeleteProject_SoftDeletes(t *testing.T) {
	store, svc := newProjectFixture(t)
	ctx := context.Background()
	project := store.SeedProject("user-1", "Shop", models.TemplateAgile)

	deleted, err := svc.DeleteProject(ctx, project.ID, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, deleted.DeletedAt)

	_, err = svc.GetProject(ctx, project.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.DeleteProject(ctx, project.ID, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
