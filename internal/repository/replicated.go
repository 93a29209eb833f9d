package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

const defaultRecheck = time.Minute

// ReplicatedStore runs every operation on the primary store and copies each
// committed document to a replica in commit order. Replica failures never
// fail the caller; the replica is marked down and retried after the recheck
// interval.
type ReplicatedStore struct {
	primary database.Store
	replica database.Store
	logger  *zerolog.Logger
	recheck time.Duration
	now     func() time.Time

	// writeMu spans the primary write and its mirror so the replica never
	// receives an older document after a newer one.
	writeMu sync.Mutex

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewReplicatedStore(primary, replica database.Store, recheck time.Duration, logger *zerolog.Logger) *ReplicatedStore {
	if recheck <= 0 {
		recheck = defaultRecheck
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReplicatedStore{
		primary: primary,
		replica: replica,
		logger:  logger,
		recheck: recheck,
		now:     time.Now,
	}
}

func (s *ReplicatedStore) Load(ctx context.Context) (*models.Document, error) {
	return s.primary.Load(ctx)
}

func (s *ReplicatedStore) Save(ctx context.Context, doc *models.Document) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.primary.Save(ctx, doc); err != nil {
		return err
	}
	s.mirror(ctx, doc)
	return nil
}

func (s *ReplicatedStore) Update(ctx context.Context, fn database.UpdateFunc) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var committed *models.Document
	err := s.primary.Update(ctx, func(doc *models.Document) error {
		if err := fn(doc); err != nil {
			return err
		}
		committed = doc.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	s.mirror(ctx, committed)
	return nil
}

func (s *ReplicatedStore) Ping(ctx context.Context) error {
	return s.primary.Ping(ctx)
}

func (s *ReplicatedStore) Close() error {
	err := s.primary.Close()
	if s.replica != nil {
		if rerr := s.replica.Close(); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

func (s *ReplicatedStore) mirror(ctx context.Context, doc *models.Document) {
	if s.replica == nil || !s.replicaUsable() {
		return
	}

	if err := s.replica.Save(ctx, doc); err != nil {
		s.markDown(err)
		return
	}
	if s.isDown.CompareAndSwap(true, false) {
		s.logger.Info().Msg("Ledger replica recovered")
	}
}

func (s *ReplicatedStore) replicaUsable() bool {
	if !s.isDown.Load() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.lastCheck) >= s.recheck
}

func (s *ReplicatedStore) markDown(err error) {
	s.mu.Lock()
	s.lastCheck = s.now()
	s.mu.Unlock()
	if !s.isDown.Swap(true) {
		s.logger.Error().Err(err).Msg("Ledger replica unavailable, continuing on primary only")
	}
}
