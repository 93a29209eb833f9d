package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"courtbook/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresStore keeps the document as a JSONB row and locks it with
// SELECT ... FOR UPDATE during Update, so several service instances can
// share one ledger.
type PostgresStore struct {
	pool   *pgxpool.Pool
	mu     sync.Mutex
	logger *zerolog.Logger
}

func NewPostgresStore(ctx context.Context, databaseURL string, logger *zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: loggerOrNop(logger)}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_documents (
			name TEXT PRIMARY KEY,
			body JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create ledger_documents: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*models.Document, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM ledger_documents WHERE name = $1`, documentName).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select ledger document: %w", err)
	}
	return decodeDocument(body, "postgres", s.logger), nil
}

func (s *PostgresStore) Save(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ledger_documents (name, body, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		documentName, string(data))
	if err != nil {
		return writeFailed("upsert", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_documents (name, body) VALUES ($1, '{"slots":[]}'::jsonb)
			ON CONFLICT (name) DO NOTHING`, documentName)
		if err != nil {
			return fmt.Errorf("seed ledger document: %w", err)
		}

		var body []byte
		err = tx.QueryRow(ctx,
			`SELECT body FROM ledger_documents WHERE name = $1 FOR UPDATE`, documentName).Scan(&body)
		if err != nil {
			return fmt.Errorf("lock ledger document: %w", err)
		}

		doc := decodeDocument(body, "postgres", s.logger)
		if err := fn(doc); err != nil {
			return err
		}

		data, err := encodeDocument(doc)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE ledger_documents SET body = $2::jsonb, updated_at = now() WHERE name = $1`,
			documentName, string(data))
		if err != nil {
			return writeFailed("update", err)
		}
		return nil
	})
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return writeFailed("commit", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
