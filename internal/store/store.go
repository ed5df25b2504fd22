// Package store provisions the submissions table backing the front-end's
// reply-pointer persistence, against either a Postgres database or a
// Supabase project, selected by configuration. The core broker never reads
// or writes this store at request time; create-database is its only caller.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	supabase "github.com/supabase-community/supabase-go"
)

// Store is the narrow provisioning capability create-database needs.
type Store interface {
	// Provision creates the submissions table if it does not already exist.
	Provision(ctx context.Context) error
	Close() error
}

// Open selects and connects a backend store per backend ("postgres" or
// "supabase").
func Open(backend, postgresDSN, supabaseURL, supabaseServiceKey string) (Store, error) {
	switch backend {
	case "postgres":
		return newPostgresStore(postgresDSN)
	case "supabase":
		return newSupabaseStore(supabaseURL, supabaseServiceKey)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", backend)
	}
}

type postgresStore struct {
	db *sql.DB
}

func newPostgresStore(dsn string) (*postgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	return &postgresStore{db: db}, nil
}

const createSubmissionsTable = `
CREATE TABLE IF NOT EXISTS submissions (
	id         TEXT PRIMARY KEY,
	language   TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`

func (p *postgresStore) Provision(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, createSubmissionsTable)
	if err != nil {
		return fmt.Errorf("store: create submissions table: %w", err)
	}
	return nil
}

func (p *postgresStore) Close() error {
	return p.db.Close()
}

type supabaseStore struct {
	client *supabase.Client
}

func newSupabaseStore(url, serviceKey string) (*supabaseStore, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("store: supabase url and service key must be set")
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("store: new supabase client: %w", err)
	}
	return &supabaseStore{client: client}, nil
}

// Provision checks that the submissions table already exists: the
// supabase-go REST client has no DDL capability, so an operator must create
// the table via the dashboard or migration tooling first. This turns that
// prerequisite into a verifiable check instead of a silent no-op.
func (s *supabaseStore) Provision(ctx context.Context) error {
	var rows []map[string]any
	_, err := s.client.From("submissions").
		Select("id", "", false).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("store: submissions table not reachable, create it via the Supabase dashboard or migration tooling first: %w", err)
	}
	return nil
}

func (s *supabaseStore) Close() error {
	return nil
}
