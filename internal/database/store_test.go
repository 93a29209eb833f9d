package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func sampleDocument() *models.Document {
	at := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	return &models.Document{Slots: []models.Slot{
		{ID: "slot_20240305_0700", Date: "2024-03-05", Time: "07:00"},
		{ID: "slot_20240305_0800", Date: "2024-03-05", Time: "08:00", Booked: true, BookedBy: "Ann", BookedAt: &at},
	}}
}

// storeContract exercises behaviour every backend must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("EmptyWhenAbsent", func(t *testing.T) {
		s := newStore(t)
		doc, err := s.Load(ctx)
		require.NoError(t, err)
		assert.NotNil(t, doc.Slots)
		assert.Empty(t, doc.Slots)
	})

	t.Run("SaveThenLoad", func(t *testing.T) {
		s := newStore(t)
		want := sampleDocument()
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got.Slots, 2)
		assert.Equal(t, want.Slots[0], got.Slots[0])
		assert.Equal(t, "Ann", got.Slots[1].BookedBy)
		require.NotNil(t, got.Slots[1].BookedAt)
		assert.True(t, want.Slots[1].BookedAt.Equal(*got.Slots[1].BookedAt))
	})

	t.Run("UpdateAbortsOnError", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Save(ctx, sampleDocument()))

		boom := errors.New("boom")
		err := s.Update(ctx, func(doc *models.Document) error {
			doc.Slots = nil
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got.Slots, 2)
	})

	t.Run("UpdatesAreSerialized", func(t *testing.T) {
		s := newStore(t)
		const writers = 20

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Update(ctx, func(doc *models.Document) error {
					doc.Slots = append(doc.Slots, models.Slot{ID: fmt.Sprintf("slot_%02d", i)})
					return nil
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, got.Slots, writers)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStoreDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc := sampleDocument()
	require.NoError(t, s.Save(ctx, doc))

	doc.Slots[0].Booked = true
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.Slots[0].Booked)
}

func TestFileStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "data", "slots.json"), testLogger())
		require.NoError(t, err)
		return s
	})
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewFileStore(path, testLogger())
	require.NoError(t, err)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Slots)
}

func TestFileStoreWritesIndentedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.json")
	s, err := NewFileStore(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), models.NewDocument()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"slots\": []\n}", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"), testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStoreCorruptDocument(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"), testLogger())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO ledger_documents (name, body) VALUES (?, ?)`, documentName, "[]x")
	require.NoError(t, err)

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Slots)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, "", testLogger())
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, _ := newRedisStore(t)
		return s
	})
}

func TestRedisStoreCorruptDocument(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, mr.Set(DefaultRedisKey, "{oops"))

	doc, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc.Slots)
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, err := s.Load(context.Background())
	assert.Error(t, err)

	err = s.Save(context.Background(), sampleDocument())
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("COURTBOOK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("COURTBOOK_TEST_DATABASE_URL not set")
	}

	storeContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, url, testLogger())
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `DELETE FROM ledger_documents`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
