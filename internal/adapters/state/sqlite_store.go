package state

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the cursor store
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens (and if needed creates) the cursor database
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS relay_cursor (
			id INTEGER PRIMARY KEY,
			last_dt_iso TEXT NOT NULL,
			last_uid INTEGER NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{sqlStore{
		db: db,
		upsert: `
			INSERT OR REPLACE INTO relay_cursor (id, last_dt_iso, last_uid, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		`,
		location: "sqlite:" + dbPath,
		logger:   logger,
	}}, nil
}
