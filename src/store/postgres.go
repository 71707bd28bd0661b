package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Protocol-Lattice/go-grader/src/grader"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS grading_results (
    id         TEXT PRIMARY KEY,
    mode       TEXT NOT NULL,
    chunked    BOOLEAN NOT NULL DEFAULT FALSE,
    result     JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresStore keeps results as JSONB rows.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and creates the results table if needed.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (ps *PostgresStore) Save(ctx context.Context, res grader.FinalResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = ps.DB.Exec(ctx, `
        INSERT INTO grading_results (id, mode, chunked, result, created_at)
        VALUES ($1, $2, $3, $4::jsonb, $5)
        ON CONFLICT (id) DO UPDATE SET mode = EXCLUDED.mode, chunked = EXCLUDED.chunked, result = EXCLUDED.result;
        `, res.ID, string(res.Mode), res.Chunked, string(payload), res.CreatedAt)
	return err
}

func (ps *PostgresStore) Get(ctx context.Context, id string) (grader.FinalResult, error) {
	var payload []byte
	err := ps.DB.QueryRow(ctx, `SELECT result::text FROM grading_results WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return grader.FinalResult{}, ErrNotFound
	}
	if err != nil {
		return grader.FinalResult{}, err
	}
	var res grader.FinalResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return grader.FinalResult{}, fmt.Errorf("decode result %s: %w", id, err)
	}
	return res, nil
}

func (ps *PostgresStore) Close(context.Context) error {
	ps.DB.Close()
	return nil
}
