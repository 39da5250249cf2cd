package state

import (
	"context"
	"sync"

	"github.com/mikey/digest-relay/internal/core"
	"go.uber.org/zap"
)

// MemoryStore keeps the cursor in process memory only. Every restart
// starts without a cursor.
type MemoryStore struct {
	mu     sync.RWMutex
	cursor *core.Cursor
	saves  int
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory cursor store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{logger: logger}
}

// Load returns the last saved cursor
func (s *MemoryStore) Load(ctx context.Context) (*core.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cursor == nil {
		return nil, nil
	}
	c := *s.cursor
	return &c, nil
}

// Save replaces the cursor
func (s *MemoryStore) Save(ctx context.Context, cursor core.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor = &cursor
	s.saves++
	s.logger.Debug("Saved cursor in memory", zap.Stringer("cursor", cursor))
	return nil
}

// Saves returns how many times Save was called
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Location describes the store
func (s *MemoryStore) Location() string {
	return "memory"
}

// Close is a no-op for memory storage
func (s *MemoryStore) Close() error {
	return nil
}
