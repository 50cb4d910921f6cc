package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"autoapply/internal/domain"
	"autoapply/internal/repository"
	"autoapply/internal/scheduler"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// StatusCache is the projection cache surface (see internal/cache).
type StatusCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type SubmitJobInput struct {
	URL         string
	Platform    domain.Platform
	PostingText string
	Title       string
	Company     string
	CandidateID uuid.UUID
	ResumeID    uuid.UUID // base resume version to tailor from
	TestMode    bool
}

type ApplicationStatus struct {
	Application domain.Application `json:"application"`
	Events      []domain.Event     `json:"events"`
}

// Orchestrator is the outward control surface of the core: enqueue a
// lifecycle, inspect it, resolve reviews, cancel.
type Orchestrator interface {
	SubmitJob(ctx context.Context, in SubmitJobInput) (domain.Application, error)
	GetStatus(ctx context.Context, id uuid.UUID) (ApplicationStatus, error)
	Approve(ctx context.Context, id uuid.UUID) error
	Reject(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

type OrchestratorService struct {
	sched   *scheduler.Scheduler
	jobs    repository.JobRepository
	resumes repository.ResumeRepository
	apps    repository.ApplicationRepository
	events  repository.EventRepository
	cache   StatusCache

	now func() time.Time
}

func NewOrchestratorService(
	sched *scheduler.Scheduler,
	jobs repository.JobRepository,
	resumes repository.ResumeRepository,
	apps repository.ApplicationRepository,
	events repository.EventRepository,
	cache StatusCache,
) *OrchestratorService {
	return &OrchestratorService{
		sched:   sched,
		jobs:    jobs,
		resumes: resumes,
		apps:    apps,
		events:  events,
		cache:   cache,
		now:     time.Now,
	}
}

// SubmitJob registers the posting and opens its application lifecycle at
// discovered. The repository's active-uniqueness check is what makes a
// duplicate submit fail instead of double-applying.
func (s *OrchestratorService) SubmitJob(ctx context.Context, in SubmitJobInput) (domain.Application, error) {
	if strings.TrimSpace(in.URL) == "" || strings.TrimSpace(in.PostingText) == "" {
		return domain.Application{}, fmt.Errorf("%w: url and posting_text required", ErrInvalidInput)
	}
	if in.Platform == "" {
		in.Platform = domain.PlatformOther
	}
	if in.CandidateID == uuid.Nil || in.ResumeID == uuid.Nil {
		return domain.Application{}, fmt.Errorf("%w: candidate_id and resume_id required", ErrInvalidInput)
	}
	if _, err := s.resumes.GetByID(ctx, in.ResumeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Application{}, fmt.Errorf("%w: resume %s", ErrNotFound, in.ResumeID)
		}
		return domain.Application{}, err
	}

	now := s.now().UTC()
	job := domain.Job{
		ID:          uuid.New(),
		URL:         strings.TrimSpace(in.URL),
		Platform:    in.Platform,
		PostingText: in.PostingText,
		CreatedAt:   now,
	}
	if t := strings.TrimSpace(in.Title); t != "" {
		job.Title = &t
	}
	if c := strings.TrimSpace(in.Company); c != "" {
		job.Company = &c
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return domain.Application{}, err
	}

	app := domain.Application{
		ID:          uuid.New(),
		JobID:       job.ID,
		CandidateID: in.CandidateID,
		ResumeID:    in.ResumeID,
		State:       domain.StateDiscovered,
		TestMode:    in.TestMode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return domain.Application{}, err
	}

	s.sched.Enqueue(app.ID)
	return app, nil
}

func (s *OrchestratorService) GetStatus(ctx context.Context, id uuid.UUID) (ApplicationStatus, error) {
	key := "status:" + id.String()
	if s.cache != nil {
		var cached ApplicationStatus
		if ok, _ := s.cache.GetJSON(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ApplicationStatus{}, ErrNotFound
		}
		return ApplicationStatus{}, err
	}
	events, err := s.events.ListByApplication(ctx, id)
	if err != nil {
		return ApplicationStatus{}, err
	}

	out := ApplicationStatus{Application: app, Events: events}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, out, 5*time.Second)
	}
	return out, nil
}

func (s *OrchestratorService) Approve(ctx context.Context, id uuid.UUID) error {
	if err := s.sched.Approve(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *OrchestratorService) Reject(ctx context.Context, id uuid.UUID) error {
	if err := s.sched.Reject(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *OrchestratorService) Cancel(ctx context.Context, id uuid.UUID) error {
	if _, err := s.apps.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.sched.RequestCancel(id)
	s.invalidate(ctx, id)
	return nil
}

func (s *OrchestratorService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "status:"+id.String())
	}
}
