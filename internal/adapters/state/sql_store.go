package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mikey/digest-relay/internal/core"
	"go.uber.org/zap"
)

// cursorRowID is the primary key of the single cursor row
const cursorRowID = 1

// sqlStore holds the cursor as one row. Dialects differ only in DDL and the
// upsert statement.
type sqlStore struct {
	db       *sql.DB
	upsert   string
	location string
	logger   *zap.Logger
}

func (s *sqlStore) Load(ctx context.Context) (*core.Cursor, error) {
	var ts string
	var uid int64

	err := s.db.QueryRowContext(ctx, `
		SELECT last_dt_iso, last_uid
		FROM relay_cursor
		WHERE id = ?
	`, cursorRowID).Scan(&ts, &uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query cursor: %w", err)
	}

	return cursorFrom(ts, uid)
}

func (s *sqlStore) Save(ctx context.Context, cursor core.Cursor) error {
	_, err := s.db.ExecContext(ctx, s.upsert, cursorRowID, formatTimestamp(cursor.Timestamp), int64(cursor.UID))
	if err != nil {
		return fmt.Errorf("failed to store cursor: %w", err)
	}

	s.logger.Debug("Saved cursor",
		zap.String("location", s.location),
		zap.Time("timestamp", cursor.Timestamp),
		zap.Uint32("uid", cursor.UID))
	return nil
}

func (s *sqlStore) Location() string {
	return s.location
}

func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
		return err
	}
	return nil
}
