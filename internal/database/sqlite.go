package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"courtbook/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const documentName = "slots"

// SQLiteStore keeps the document as one row of the ledger_documents table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	logger *zerolog.Logger
}

func NewSQLiteStore(path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, logger: loggerOrNop(logger)}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_documents (
			name TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("create ledger_documents: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.Document, error) {
	return s.load(ctx, s.db)
}

func (s *SQLiteStore) Save(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := s.upsert(ctx, s.db, data); err != nil {
		return writeFailed("upsert", err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	doc, err := s.load(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}

	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := s.upsert(ctx, tx, data); err != nil {
		return writeFailed("upsert", err)
	}
	if err := tx.Commit(); err != nil {
		return writeFailed("commit", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) load(ctx context.Context, q queryer) (*models.Document, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM ledger_documents WHERE name = ?`, documentName).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select ledger document: %w", err)
	}
	return decodeDocument([]byte(body), "sqlite:"+s.path, s.logger), nil
}

func (s *SQLiteStore) upsert(ctx context.Context, q queryer, data []byte) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_documents (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		documentName, string(data), time.Now().UTC())
	return err
}
