package repository

import (
	"context"
	"database/sql"
	"errors"

	"autoapply/internal/database"
	"autoapply/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresResumeRepository struct {
	db database.DB
}

func NewPostgresResumeRepository(db database.DB) *PostgresResumeRepository {
	return &PostgresResumeRepository{db: db}
}

func (r *PostgresResumeRepository) Create(ctx context.Context, res domain.Resume) error {
	var mode *string
	if res.Mode != nil {
		m := string(*res.Mode)
		mode = &m
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO resumes (id, candidate_id, parent_id, mode, content, derived_from, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID, res.CandidateID, res.ParentID, mode, res.Content, res.DerivedFrom, res.CreatedAt,
	)
	return err
}

func (r *PostgresResumeRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Resume, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, candidate_id, parent_id, mode, content, derived_from, created_at
		 FROM resumes WHERE id = $1`, id)

	var res domain.Resume
	var mode sql.NullString
	if err := row.Scan(&res.ID, &res.CandidateID, &res.ParentID, &mode, &res.Content, &res.DerivedFrom, &res.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return domain.Resume{}, ErrNotFound
		}
		return domain.Resume{}, err
	}
	if mode.Valid {
		m := domain.TailoringMode(mode.String)
		res.Mode = &m
	}
	return res, nil
}
