package repository

import (
	"context"
	"sort"
	"sync"

	"autoapply/internal/domain"

	"github.com/google/uuid"
)

// In-memory implementations, used by the scheduler tests and by test-mode
// runs that should not touch postgres.

type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]domain.Job
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[uuid.UUID]domain.Job)}
}

func (r *MemoryJobRepository) Create(ctx context.Context, j domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	return nil
}

func (r *MemoryJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, ErrNotFound
	}
	return j, nil
}

func (r *MemoryJobRepository) SetRequirements(ctx context.Context, id uuid.UUID, reqs []domain.Requirement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Requirements = reqs
	r.jobs[id] = j
	return nil
}

type MemoryResumeRepository struct {
	mu      sync.RWMutex
	resumes map[uuid.UUID]domain.Resume
}

func NewMemoryResumeRepository() *MemoryResumeRepository {
	return &MemoryResumeRepository{resumes: make(map[uuid.UUID]domain.Resume)}
}

func (r *MemoryResumeRepository) Create(ctx context.Context, res domain.Resume) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumes[res.ID] = res
	return nil
}

func (r *MemoryResumeRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Resume, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resumes[id]
	if !ok {
		return domain.Resume{}, ErrNotFound
	}
	return res, nil
}

type MemoryApplicationRepository struct {
	mu   sync.RWMutex
	apps map[uuid.UUID]domain.Application
}

func NewMemoryApplicationRepository() *MemoryApplicationRepository {
	return &MemoryApplicationRepository{apps: make(map[uuid.UUID]domain.Application)}
}

func (r *MemoryApplicationRepository) Create(ctx context.Context, a domain.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.apps {
		if existing.JobID == a.JobID && existing.CandidateID == a.CandidateID && !existing.State.Terminal() {
			return ErrActiveExists
		}
	}
	r.apps[a.ID] = a
	return nil
}

func (r *MemoryApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[id]
	if !ok {
		return domain.Application{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryApplicationRepository) UpdateIfState(ctx context.Context, a domain.Application, expect domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.apps[a.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.State != expect {
		return ErrStateConflict
	}
	r.apps[a.ID] = a
	return nil
}

func (r *MemoryApplicationRepository) ListNonTerminal(ctx context.Context) ([]domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Application, 0)
	for _, a := range r.apps {
		if !a.State.Terminal() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]domain.Event
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{events: make(map[uuid.UUID][]domain.Event)}
}

func (r *MemoryEventRepository) Append(ctx context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.ApplicationID] = append(r.events[e.ApplicationID], e)
	return nil
}

func (r *MemoryEventRepository) ListByApplication(ctx context.Context, appID uuid.UUID) ([]domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	evs := r.events[appID]
	out := make([]domain.Event, len(evs))
	copy(out, evs)
	return out, nil
}
