package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mikey/digest-relay/internal/core"
	"go.uber.org/zap"
)

// FileStore keeps the cursor in a JSON file. Writes go to a temporary file
// in the same directory which is then renamed over the canonical path, so a
// reader only ever sees the previous or the new content.
type FileStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex

	rename func(oldpath, newpath string) error
}

// NewFileStore creates a new file-backed cursor store
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
		rename: os.Rename,
	}
}

// Load reads the cursor. A missing file means no cursor yet.
func (s *FileStore) Load(ctx context.Context) (*core.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("State file does not exist", zap.String("path", s.path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	cursor, err := decodeCursor(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", s.path, err)
	}
	return cursor, nil
}

// Save atomically replaces the state file
func (s *FileStore) Save(ctx context.Context, cursor core.Cursor) error {
	data, err := encodeCursor(cursor)
	if err != nil {
		return fmt.Errorf("failed to encode cursor: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary state file: %w", err)
	}

	if err := s.rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	committed = true

	s.logger.Debug("Saved cursor",
		zap.String("path", s.path),
		zap.Time("timestamp", cursor.Timestamp),
		zap.Uint32("uid", cursor.UID))
	return nil
}

// Location returns the state file path
func (s *FileStore) Location() string {
	return s.path
}

// Close is a no-op for file storage
func (s *FileStore) Close() error {
	return nil
}
