package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists call accounting in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	// monthlyCallCap bounds calls per account per calendar month; 0 disables.
	monthlyCallCap int
}

func NewPostgresStore(ctx context.Context, databaseURL string, monthlyCallCap int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, monthlyCallCap: monthlyCallCap}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			call_id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			scenario TEXT NOT NULL,
			direction TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at TIMESTAMPTZ,
			outcome TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calls_account_started ON calls (account_id, started_at);`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			id BIGSERIAL PRIMARY KEY,
			call_id TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_call ON transcripts (call_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init store schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CanStartCall(ctx context.Context, accountID string) (bool, error) {
	if s.monthlyCallCap <= 0 {
		return true, nil
	}
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM calls
		 WHERE account_id=$1 AND started_at >= date_trunc('month', now())`,
		accountID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count monthly calls: %w", err)
	}
	return n < s.monthlyCallCap, nil
}

func (s *PostgresStore) RecordCallStarted(ctx context.Context, rec CallRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO calls (call_id, account_id, scenario, direction, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.CallID, rec.AccountID, rec.Scenario, rec.Direction, rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("record call started: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordCallEnded(ctx context.Context, callID, outcome string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE calls SET ended_at=now(), outcome=$2 WHERE call_id=$1`,
		callID, outcome,
	)
	if err != nil {
		return fmt.Errorf("record call ended: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, frag TranscriptFragment) error {
	if frag.CreatedAt.IsZero() {
		frag.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (call_id, text, created_at) VALUES ($1, $2, $3)`,
		frag.CallID, frag.Text, frag.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
