package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists account-scoped custom scenarios in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS custom_scenarios (
		account_id TEXT NOT NULL,
		key TEXT NOT NULL,
		persona TEXT NOT NULL,
		prompt TEXT NOT NULL,
		voice TEXT NOT NULL,
		temperature DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (account_id, key)
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init scenario schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, accountID, key string) (Scenario, error) {
	var sc Scenario
	err := s.pool.QueryRow(ctx,
		`SELECT key, persona, prompt, voice, temperature
		 FROM custom_scenarios WHERE account_id=$1 AND key=$2`,
		accountID, key,
	).Scan(&sc.Key, &sc.Persona, &sc.Prompt, &sc.Voice, &sc.Temperature)
	if errors.Is(err, pgx.ErrNoRows) {
		return Scenario{}, ErrNotFound
	}
	if err != nil {
		return Scenario{}, fmt.Errorf("query scenario: %w", err)
	}
	return sc, nil
}

func (s *PostgresStore) Create(ctx context.Context, accountID string, sc Scenario) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO custom_scenarios (account_id, key, persona, prompt, voice, temperature)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		accountID, sc.Key, sc.Persona, sc.Prompt, sc.Voice, sc.Temperature,
	)
	if err != nil {
		return fmt.Errorf("save scenario: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountForAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM custom_scenarios WHERE account_id=$1`, accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count scenarios: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
