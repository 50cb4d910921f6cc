package usecase

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"autoapply/internal/domain"
	"autoapply/internal/governor"
	"autoapply/internal/repository"
	"autoapply/internal/retry"
	"autoapply/internal/scheduler"

	"github.com/google/uuid"
)

type fakeCache struct {
	mu      sync.Mutex
	store   map[string][]byte
	gets    int
	hits    int
	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]byte)}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	_, ok := c.store[key]
	if ok {
		c.hits++
	}
	return false, nil // decoding skipped, hit counting is enough for tests
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.store[key] = []byte("set")
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.store, key)
	return nil
}

type orchFixture struct {
	svc     *OrchestratorService
	jobs    *repository.MemoryJobRepository
	resumes *repository.MemoryResumeRepository
	apps    *repository.MemoryApplicationRepository
	events  *repository.MemoryEventRepository
	cache   *fakeCache
}

func newOrchFixture(t *testing.T) *orchFixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	jobs := repository.NewMemoryJobRepository()
	resumes := repository.NewMemoryResumeRepository()
	apps := repository.NewMemoryApplicationRepository()
	events := repository.NewMemoryEventRepository()

	gov := governor.New(logger)
	sched := scheduler.New(scheduler.Config{}, gov, nil, retry.NewPolicy(3, time.Second, time.Minute, time.Second),
		apps, jobs, resumes, events, scheduler.Executors{}, nil, logger)
	t.Cleanup(sched.Stop)

	cache := newFakeCache()
	return &orchFixture{
		svc:     NewOrchestratorService(sched, jobs, resumes, apps, events, cache),
		jobs:    jobs,
		resumes: resumes,
		apps:    apps,
		events:  events,
		cache:   cache,
	}
}

func (f *orchFixture) seedResume(t *testing.T) domain.Resume {
	t.Helper()
	r := domain.Resume{ID: uuid.New(), CandidateID: uuid.New(), Content: "base resume", CreatedAt: time.Now().UTC()}
	if err := f.resumes.Create(context.Background(), r); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	return r
}

func validInput(r domain.Resume) SubmitJobInput {
	return SubmitJobInput{
		URL:         "https://example.test/posting/9",
		Platform:    domain.PlatformLinkedIn,
		PostingText: "Senior Go engineer.",
		Title:       "Senior Go Engineer",
		Company:     "Example Corp",
		CandidateID: r.CandidateID,
		ResumeID:    r.ID,
	}
}

func TestSubmitJobOpensLifecycleAtDiscovered(t *testing.T) {
	f := newOrchFixture(t)
	r := f.seedResume(t)

	app, err := f.svc.SubmitJob(context.Background(), validInput(r))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if app.State != domain.StateDiscovered {
		t.Fatalf("state = %s, want discovered", app.State)
	}

	job, err := f.jobs.GetByID(context.Background(), app.JobID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if job.Title == nil || *job.Title != "Senior Go Engineer" {
		t.Fatalf("job title = %v", job.Title)
	}
}

func TestSubmitJobValidation(t *testing.T) {
	f := newOrchFixture(t)
	r := f.seedResume(t)

	cases := []struct {
		name   string
		mutate func(*SubmitJobInput)
		want   error
	}{
		{"missing url", func(in *SubmitJobInput) { in.URL = " " }, ErrInvalidInput},
		{"missing posting text", func(in *SubmitJobInput) { in.PostingText = "" }, ErrInvalidInput},
		{"missing candidate", func(in *SubmitJobInput) { in.CandidateID = uuid.Nil }, ErrInvalidInput},
		{"missing resume", func(in *SubmitJobInput) { in.ResumeID = uuid.Nil }, ErrInvalidInput},
		{"unknown resume", func(in *SubmitJobInput) { in.ResumeID = uuid.New() }, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput(r)
			tc.mutate(&in)
			if _, err := f.svc.SubmitJob(context.Background(), in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSubmitJobDefaultsPlatform(t *testing.T) {
	f := newOrchFixture(t)
	r := f.seedResume(t)

	in := validInput(r)
	in.Platform = ""
	app, err := f.svc.SubmitJob(context.Background(), in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job, _ := f.jobs.GetByID(context.Background(), app.JobID)
	if job.Platform != domain.PlatformOther {
		t.Fatalf("platform = %s, want other", job.Platform)
	}
}

func TestGetStatusReturnsEventsAndCaches(t *testing.T) {
	f := newOrchFixture(t)
	r := f.seedResume(t)
	app, _ := f.svc.SubmitJob(context.Background(), validInput(r))

	st, err := f.svc.GetStatus(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if st.Application.ID != app.ID {
		t.Fatalf("wrong application returned")
	}
	if f.cache.sets != 1 {
		t.Fatalf("cache sets = %d, want the projection cached", f.cache.sets)
	}

	if _, err := f.svc.GetStatus(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelUnknownApplication(t *testing.T) {
	f := newOrchFixture(t)
	if err := f.svc.Cancel(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelInvalidatesStatusCache(t *testing.T) {
	f := newOrchFixture(t)
	r := f.seedResume(t)
	app, _ := f.svc.SubmitJob(context.Background(), validInput(r))

	if _, err := f.svc.GetStatus(context.Background(), app.ID); err != nil {
		t.Fatalf("get status: %v", err)
	}
	if err := f.svc.Cancel(context.Background(), app.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if f.cache.deletes != 1 {
		t.Fatalf("cache deletes = %d, want stale projection dropped", f.cache.deletes)
	}
}
