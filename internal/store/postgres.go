package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"concord/api/internal/vcs"
)

// Postgres stores one repository aggregate per row as JSONB.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects, verifies connectivity, and ensures the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS vcs_repositories (
	id         TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (s *Postgres) Save(ctx context.Context, repo *vcs.Repository) error {
	payload, err := json.Marshal(repo)
	if err != nil {
		return fmt.Errorf("marshal repository %s: %w", repo.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO vcs_repositories (id, state, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		repo.ID, payload)
	if err != nil {
		return fmt.Errorf("save repository %s: %w", repo.ID, err)
	}
	return nil
}

func (s *Postgres) Load(ctx context.Context, id string) (*vcs.Repository, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM vcs_repositories WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load repository %s: %w", id, err)
	}

	var repo vcs.Repository
	if err := json.Unmarshal(payload, &repo); err != nil {
		return nil, fmt.Errorf("unmarshal repository %s: %w", id, err)
	}
	return &repo, nil
}

func (s *Postgres) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM vcs_repositories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan snapshot id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vcs_repositories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete repository %s: %w", id, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Postgres) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
