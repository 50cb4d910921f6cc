package repository

import (
	"context"
	"database/sql"

	"autoapply/internal/database"
	"autoapply/internal/domain"

	"github.com/google/uuid"
)

type PostgresEventRepository struct {
	db database.DB
}

func NewPostgresEventRepository(db database.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) Append(ctx context.Context, e domain.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, application_id, job_id, from_state, to_state, cause, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ApplicationID, e.JobID, string(e.From), string(e.To), string(e.Cause), e.Note, e.CreatedAt,
	)
	return err
}

func (r *PostgresEventRepository) ListByApplication(ctx context.Context, appID uuid.UUID) ([]domain.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, application_id, job_id, from_state, to_state, cause, note, created_at
		 FROM events WHERE application_id = $1 ORDER BY created_at, id`, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Event, 0)
	for rows.Next() {
		var e domain.Event
		var from, to, cause string
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.JobID, &from, &to, &cause, &note, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.From = domain.State(from)
		e.To = domain.State(to)
		e.Cause = domain.Cause(cause)
		if note.Valid {
			e.Note = &note.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
