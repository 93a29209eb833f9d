package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"courtbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKey holds the document when no key is configured.
const DefaultRedisKey = "courtbook:ledger"

// RedisStore keeps the document under a single key. Update uses WATCH so a
// writer in another process cannot interleave with the read-modify-write.
type RedisStore struct {
	client *redis.Client
	key    string
	mu     sync.Mutex
	logger *zerolog.Logger
}

func NewRedisStore(client *redis.Client, key string, logger *zerolog.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, logger: loggerOrNop(logger)}
}

func (s *RedisStore) Load(ctx context.Context) (*models.Document, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decodeDocument(data, "redis:"+s.key, s.logger), nil
}

func (s *RedisStore) Save(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return writeFailed("redis set", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, s.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get %s: %w", s.key, err)
		}

		doc := decodeDocument(data, "redis:"+s.key, s.logger)
		if err := fn(doc); err != nil {
			return err
		}

		encoded, err := encodeDocument(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, encoded, 0)
			return nil
		})
		if err != nil {
			return writeFailed("redis exec", err)
		}
		return nil
	}, s.key)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
