package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

// DefaultFilePath is where the JSON document lives when nothing is configured.
const DefaultFilePath = "data/slots.json"

// FileStore keeps the document as a single JSON file. Writes go to a temp
// file in the same directory and are renamed over the target, so readers
// never observe a partially written document.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *zerolog.Logger
}

func NewFileStore(path string, logger *zerolog.Logger) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{path: path, logger: loggerOrNop(logger)}, nil
}

// Path returns the location of the JSON document.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) (*models.Document, error) {
	return s.read()
}

func (s *FileStore) Save(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(doc)
}

func (s *FileStore) Update(_ context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (*models.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	return decodeDocument(data, s.path, s.logger), nil
}

func (s *FileStore) write(doc *models.Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return writeFailed("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return writeFailed("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return writeFailed("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return writeFailed("close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return writeFailed("rename", err)
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
