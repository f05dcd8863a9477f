// Package brdtest provides in-memory repositories for service tests.
package brdtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reqforge/internal/domain"
	"reqforge/internal/domain/models/brd"
	"reqforge/internal/domain/repositories"
	brdRepo "reqforge/internal/domain/repositories/brd"
)

// Store backs every repository with maps guarded by one mutex. Journal
// records mutating calls in order so tests can assert sequencing.
type Store struct {
	mu        sync.Mutex
	projects  map[string]*brd.Project
	documents map[string]*brd.Document
	turns     []brd.Turn
	uploads   []brd.Upload
	journal   []string
	now       func() time.Time

	// Fail makes the named operation return the error once set.
	Fail      map[string]error
	remaining map[string]int
}

func NewStore() *Store {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	return &Store{
		projects:  make(map[string]*brd.Project),
		documents: make(map[string]*brd.Document),
		Fail:      make(map[string]error),
		remaining: make(map[string]int),
		now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
	}
}

// Record appends an entry to the journal. Fakes outside the store use it too.
func (s *Store) Record(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, entry)
}

func (s *Store) Journal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.journal...)
}

// FailNext makes op return err for its next n calls, then succeed again.
func (s *Store) FailNext(op string, err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fail[op] = err
	s.remaining[op] = n
}

func (s *Store) failure(op string) error {
	err := s.Fail[op]
	if n, ok := s.remaining[op]; ok && err != nil {
		if n <= 1 {
			delete(s.Fail, op)
			delete(s.remaining, op)
		} else {
			s.remaining[op] = n - 1
		}
	}
	return err
}

// Projects, Documents, Turns, Uploads and Tx expose the store through the
// repository interfaces.
func (s *Store) Projects() brdRepo.ProjectRepository   { return projectRepo{s} }
func (s *Store) Documents() brdRepo.DocumentRepository { return documentRepo{s} }
func (s *Store) Turns() brdRepo.TurnRepository         { return turnRepo{s} }
func (s *Store) Uploads() brdRepo.UploadRepository     { return uploadRepo{s} }
func (s *Store) Tx() repositories.TransactionManager   { return txManager{s} }

// SeedProject stores a project for userID and returns it.
func (s *Store) SeedProject(userID, name string, template brd.TemplateType) *brd.Project {
	p := &brd.Project{
		UserID:       userID,
		Name:         name,
		TemplateType: template,
		Status:       brd.StatusDraft,
	}
	_ = projectRepo{s}.Create(context.Background(), p)
	return p
}

// Document returns a copy of the stored document or nil.
func (s *Store) Document(projectID string) *brd.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[projectID]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

// TurnsFor returns every stored turn for the project in insertion order.
func (s *Store) TurnsFor(projectID string) []brd.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []brd.Turn
	for _, t := range s.turns {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out
}

type projectRepo struct{ s *Store }

func (r projectRepo) Create(ctx context.Context, p *brd.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("project.create"); err != nil {
		return err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	r.s.projects[p.ID] = &cp
	return nil
}

func (r projectRepo) GetByID(ctx context.Context, id, userID string) (*brd.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("project.get"); err != nil {
		return nil, err
	}
	p, ok := r.s.projects[id]
	if !ok || p.UserID != userID || p.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r projectRepo) List(ctx context.Context, userID string) ([]brd.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []brd.Project
	for _, p := range r.s.projects {
		if p.UserID == userID && p.DeletedAt == nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r projectRepo) Update(ctx context.Context, p *brd.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.projects[p.ID]
	if !ok || existing.DeletedAt != nil {
		return domain.ErrNotFound
	}
	p.UpdatedAt = r.s.now()
	cp := *p
	r.s.projects[p.ID] = &cp
	return nil
}

func (r projectRepo) UpdateStatus(ctx context.Context, id string, status brd.ProjectStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok || p.DeletedAt != nil {
		return domain.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = r.s.now()
	return nil
}

func (r projectRepo) Delete(ctx context.Context, id, userID string) (*brd.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok || p.UserID != userID || p.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	now := r.s.now()
	p.DeletedAt = &now
	cp := *p
	return &cp, nil
}

type documentRepo struct{ s *Store }

func (r documentRepo) Get(ctx context.Context, projectID string) (*brd.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("document.get"); err != nil {
		return nil, err
	}
	d, ok := r.s.documents[projectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r documentRepo) Upsert(ctx context.Context, doc *brd.Document, expectedVersion *int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("document.upsert"); err != nil {
		return err
	}

	var current int64
	existing, ok := r.s.documents[doc.ProjectID]
	if ok {
		current = existing.Version
	}
	if expectedVersion != nil && *expectedVersion != current {
		return &domain.VersionConflictError{ProjectID: doc.ProjectID, Expected: *expectedVersion, Actual: current}
	}

	now := r.s.now()
	doc.Version = current + 1
	doc.UpdatedAt = now
	if ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	cp := *doc
	r.s.documents[doc.ProjectID] = &cp
	r.s.journal = append(r.s.journal, "document.upsert")
	return nil
}

func (r documentRepo) UpdateConflicts(ctx context.Context, projectID string, conflicts []brd.Conflict) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documents[projectID]
	if !ok {
		return domain.ErrNotFound
	}
	d.Conflicts = conflicts
	d.UpdatedAt = r.s.now()
	return nil
}

type turnRepo struct{ s *Store }

func (r turnRepo) Append(ctx context.Context, t *brd.Turn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("turn.append." + t.Role); err != nil {
		return err
	}
	t.ID = uuid.NewString()
	t.CreatedAt = r.s.now()
	r.s.turns = append(r.s.turns, *t)
	r.s.journal = append(r.s.journal, "turn.append."+t.Role)
	return nil
}

func (r turnRepo) ListRecent(ctx context.Context, projectID string, limit int) ([]brd.Turn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []brd.Turn
	for _, t := range r.s.turns {
		if t.ProjectID == projectID {
			all = append(all, t)
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type uploadRepo struct{ s *Store }

func (r uploadRepo) Create(ctx context.Context, u *brd.Upload) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("upload.create"); err != nil {
		return err
	}
	u.ID = uuid.NewString()
	u.UploadedAt = r.s.now()
	r.s.uploads = append(r.s.uploads, *u)
	return nil
}

func (r uploadRepo) ListByProject(ctx context.Context, projectID string) ([]brd.Upload, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []brd.Upload{}
	for _, u := range r.s.uploads {
		if u.ProjectID == projectID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r uploadRepo) Get(ctx context.Context, id, projectID string) (*brd.Upload, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.uploads {
		if u.ID == id && u.ProjectID == projectID {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r uploadRepo) Delete(ctx context.Context, id, projectID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, u := range r.s.uploads {
		if u.ID == id && u.ProjectID == projectID {
			r.s.uploads = append(r.s.uploads[:i], r.s.uploads[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// txManager runs fn directly; the store has no rollback.
type txManager struct{ s *Store }

func (m txManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}
