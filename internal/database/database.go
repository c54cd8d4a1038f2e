// Package database opens the Postgres pool and bootstraps the schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN and checks that
// the server answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema creates the analysis tables. Keeping the migration in code lets
// docker compose bootstrap everything.
const Schema = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	status TEXT NOT NULL,
	decision TEXT,
	confidence DOUBLE PRECISION,
	summary TEXT,
	error_code TEXT,
	error_message TEXT,
	error_details JSONB,
	finished_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES analysis_jobs(id) ON DELETE CASCADE,
	document_type TEXT NOT NULL,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	checksum_sha256 TEXT NOT NULL,
	object_key TEXT NOT NULL,
	extracted_text TEXT,
	extracted_data JSONB,
	llm_model TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (job_id, document_type)
);

CREATE TABLE IF NOT EXISTS analysis_inconsistencies (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL REFERENCES analysis_jobs(id) ON DELETE CASCADE,
	code TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	pointers JSONB NOT NULL,
	document_id TEXT REFERENCES documents(id) ON DELETE SET NULL,
	position INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_inconsistencies_job ON analysis_inconsistencies(job_id);`

// EnsureSchema creates the tables if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
