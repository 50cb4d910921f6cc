package repository

import (
	"context"
	"database/sql"
	"errors"

	"autoapply/internal/database"
	"autoapply/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresApplicationRepository struct {
	db database.DB
}

func NewPostgresApplicationRepository(db database.DB) *PostgresApplicationRepository {
	return &PostgresApplicationRepository{db: db}
}

func (r *PostgresApplicationRepository) Create(ctx context.Context, a domain.Application) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO applications
		 (id, job_id, candidate_id, resume_id, state, attempts, last_failure, fail_reason, confirmation, test_mode, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.JobID, a.CandidateID, a.ResumeID, string(a.State), a.Attempts,
		failureArg(a.LastFailure), a.FailReason, a.Confirmation, a.TestMode, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: the partial unique index on active (job, candidate).
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveExists
		}
		return err
	}
	return nil
}

func (r *PostgresApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Application, error) {
	row := r.db.QueryRow(ctx, selectApplication+` WHERE id = $1`, id)
	return scanApplication(row)
}

func (r *PostgresApplicationRepository) UpdateIfState(ctx context.Context, a domain.Application, expect domain.State) error {
	n, err := r.db.Exec(ctx,
		`UPDATE applications
		 SET state = $2, attempts = $3, last_failure = $4, fail_reason = $5, confirmation = $6, updated_at = $7
		 WHERE id = $1 AND state = $8`,
		a.ID, string(a.State), a.Attempts, failureArg(a.LastFailure), a.FailReason, a.Confirmation, a.UpdatedAt, string(expect),
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}

func (r *PostgresApplicationRepository) ListNonTerminal(ctx context.Context) ([]domain.Application, error) {
	rows, err := r.db.Query(ctx,
		selectApplication+` WHERE state NOT IN ('confirmed', 'failed', 'cancelled') ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const selectApplication = `SELECT id, job_id, candidate_id, resume_id, state, attempts,
	last_failure, fail_reason, confirmation, test_mode, created_at, updated_at FROM applications`

type appRow interface {
	Scan(dest ...any) error
}

func scanApplication(row appRow) (domain.Application, error) {
	var a domain.Application
	var state string
	var lastFailure, failReason, confirmation sql.NullString
	err := row.Scan(&a.ID, &a.JobID, &a.CandidateID, &a.ResumeID, &state, &a.Attempts,
		&lastFailure, &failReason, &confirmation, &a.TestMode, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return domain.Application{}, ErrNotFound
		}
		return domain.Application{}, err
	}
	a.State = domain.State(state)
	if lastFailure.Valid {
		k := domain.FailureKind(lastFailure.String)
		a.LastFailure = &k
	}
	if failReason.Valid {
		a.FailReason = &failReason.String
	}
	if confirmation.Valid {
		a.Confirmation = &confirmation.String
	}
	return a, nil
}

func failureArg(k *domain.FailureKind) *string {
	if k == nil {
		return nil
	}
	s := string(*k)
	return &s
}
