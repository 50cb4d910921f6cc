package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"autoapply/internal/database"
	"autoapply/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresJobRepository struct {
	db database.DB
}

func NewPostgresJobRepository(db database.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

func (r *PostgresJobRepository) Create(ctx context.Context, j domain.Job) error {
	reqs, err := marshalRequirements(j.Requirements)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO jobs (id, url, platform, title, company, posting_text, requirements, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		j.ID, j.URL, string(j.Platform), j.Title, j.Company, j.PostingText, reqs, j.CreatedAt,
	)
	return err
}

func (r *PostgresJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, url, platform, title, company, posting_text, requirements, created_at
		 FROM jobs WHERE id = $1`, id)

	var j domain.Job
	var platform string
	var title, company sql.NullString
	var reqs []byte
	if err := row.Scan(&j.ID, &j.URL, &platform, &title, &company, &j.PostingText, &reqs, &j.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, ErrNotFound
		}
		return domain.Job{}, err
	}
	j.Platform = domain.Platform(platform)
	if title.Valid {
		j.Title = &title.String
	}
	if company.Valid {
		j.Company = &company.String
	}
	if len(reqs) > 0 {
		if err := json.Unmarshal(reqs, &j.Requirements); err != nil {
			return domain.Job{}, err
		}
	}
	return j, nil
}

func (r *PostgresJobRepository) SetRequirements(ctx context.Context, id uuid.UUID, reqs []domain.Requirement) error {
	b, err := marshalRequirements(reqs)
	if err != nil {
		return err
	}
	n, err := r.db.Exec(ctx, `UPDATE jobs SET requirements = $2 WHERE id = $1`, id, b)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalRequirements(reqs []domain.Requirement) ([]byte, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	return json.Marshal(reqs)
}
