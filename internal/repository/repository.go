package repository

import (
	"context"
	"errors"

	"autoapply/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
	// ErrActiveExists guards the at-most-one-active-application rule.
	ErrActiveExists = errors.New("active application already exists for job and candidate")
)

type JobRepository interface {
	Create(ctx context.Context, j domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Job, error)
	SetRequirements(ctx context.Context, id uuid.UUID, reqs []domain.Requirement) error
}

type ResumeRepository interface {
	Create(ctx context.Context, r domain.Resume) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Resume, error)
}

type ApplicationRepository interface {
	// Create fails with ErrActiveExists when a non-terminal application
	// already exists for the same (job, candidate).
	Create(ctx context.Context, a domain.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Application, error)
	// UpdateIfState persists a only when the stored state still equals
	// expect, the compare-and-swap that serializes transitions.
	UpdateIfState(ctx context.Context, a domain.Application, expect domain.State) error
	ListNonTerminal(ctx context.Context) ([]domain.Application, error)
}

type EventRepository interface {
	Append(ctx context.Context, e domain.Event) error
	ListByApplication(ctx context.Context, appID uuid.UUID) ([]domain.Event, error)
}
