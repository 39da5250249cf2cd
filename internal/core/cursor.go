package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// CursorService is the lock-guarded in-memory mirror of the persisted cursor.
// It is shared by the watcher and the on-demand operations.
type CursorService struct {
	mu     sync.Mutex
	cursor *Cursor
	store  CursorStore
	logger *zap.Logger
}

// NewCursorService loads the stored cursor once. Load failures leave the
// cursor unset.
func NewCursorService(ctx context.Context, store CursorStore, logger *zap.Logger) *CursorService {
	s := &CursorService{store: store, logger: logger}

	cursor, err := store.Load(ctx)
	if err != nil {
		logger.Warn("Failed to load cursor, starting without one", zap.Error(err))
		return s
	}
	if cursor != nil {
		c := *cursor
		s.cursor = &c
		logger.Info("Loaded cursor",
			zap.Time("timestamp", c.Timestamp),
			zap.Uint32("uid", c.UID))
	}
	return s
}

// Get returns the current cursor.
func (s *CursorService) Get() (Cursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor == nil {
		return Cursor{}, false
	}
	return *s.cursor, true
}

// Set advances the cursor and flushes it to the store. Keys that do not
// exceed the current cursor are ignored so the cursor never moves backwards.
// The in-memory value is updated even when persisting fails; the returned
// error is a soft failure.
func (s *CursorService) Set(ctx context.Context, cursor Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setLocked(ctx, cursor)
}

// InitIfUnset sets the cursor only when none exists yet. The init callback is
// invoked under the lock so that concurrent callers cannot both initialise.
func (s *CursorService) InitIfUnset(ctx context.Context, init func() (*Cursor, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor != nil {
		return false, nil
	}

	cursor, err := init()
	if err != nil {
		return false, err
	}
	if cursor == nil {
		return false, nil
	}
	if err := s.setLocked(ctx, *cursor); err != nil {
		s.logger.Warn("Failed to persist initial cursor", zap.Error(err))
	}
	return true, nil
}

func (s *CursorService) setLocked(ctx context.Context, cursor Cursor) error {
	cursor = NewCursor(cursor.Timestamp, cursor.UID)
	if s.cursor != nil && !cursor.After(*s.cursor) {
		return nil
	}
	s.cursor = &cursor

	if err := s.store.Save(ctx, cursor); err != nil {
		s.logger.Error("Failed to persist cursor",
			zap.Error(err),
			zap.Time("timestamp", cursor.Timestamp),
			zap.Uint32("uid", cursor.UID))
		return err
	}
	return nil
}
