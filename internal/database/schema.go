package database

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		url TEXT NOT NULL,
		platform TEXT NOT NULL,
		title TEXT,
		company TEXT,
		posting_text TEXT NOT NULL,
		requirements JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS resumes (
		id UUID PRIMARY KEY,
		candidate_id UUID NOT NULL,
		parent_id UUID REFERENCES resumes(id),
		mode TEXT,
		content TEXT NOT NULL,
		derived_from UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id UUID PRIMARY KEY,
		job_id UUID NOT NULL REFERENCES jobs(id),
		candidate_id UUID NOT NULL,
		resume_id UUID NOT NULL,
		state TEXT NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		last_failure TEXT,
		fail_reason TEXT,
		confirmation TEXT,
		test_mode BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// The partial unique index is the database-side backstop for the
	// at-most-one-active-application invariant.
	`CREATE UNIQUE INDEX IF NOT EXISTS applications_active_unique
		ON applications (job_id, candidate_id)
		WHERE state NOT IN ('confirmed', 'failed', 'cancelled')`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		application_id UUID NOT NULL REFERENCES applications(id),
		job_id UUID NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		cause TEXT NOT NULL,
		note TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS events_application_idx ON events (application_id, created_at)`,
}

// EnsureSchema applies the schema idempotently at startup.
func EnsureSchema(ctx context.Context, db DB) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
