package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"courtbook/internal/metrics"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrWriteFailed wraps any failure to durably persist the ledger document.
	ErrWriteFailed = errors.New("ledger write failed")
	// ErrCorruptDocument marks a stored document that could not be decoded.
	// Stores recover from it by starting from an empty document.
	ErrCorruptDocument = errors.New("ledger document corrupt")
)

// UpdateFunc mutates the freshly loaded document in place. Returning an
// error aborts the update and nothing is written.
type UpdateFunc func(doc *models.Document) error

// Store persists the ledger document with whole-document overwrite.
type Store interface {
	// Load returns the current document, or an empty one if none exists.
	Load(ctx context.Context) (*models.Document, error)
	// Save overwrites the document.
	Save(ctx context.Context, doc *models.Document) error
	// Update runs a serialized read-modify-write cycle.
	Update(ctx context.Context, fn UpdateFunc) error
	Ping(ctx context.Context) error
	Close() error
}

func decodeDocument(data []byte, source string, logger *zerolog.Logger) *models.Document {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.NewDocument()
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		metrics.IncCorruptDocument()
		logger.Warn().
			Err(fmt.Errorf("%w: %w", ErrCorruptDocument, err)).
			Str("source", source).
			Msg("ledger document unreadable, previous bookings are discarded")
		return models.NewDocument()
	}
	if doc.Slots == nil {
		doc.Slots = []models.Slot{}
	}
	return &doc
}

func encodeDocument(doc *models.Document) ([]byte, error) {
	if doc == nil {
		doc = models.NewDocument()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrWriteFailed, err)
	}
	return data, nil
}

func writeFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWriteFailed, op, err)
}

func loggerOrNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
