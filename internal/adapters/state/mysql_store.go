package state

import (
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the cursor store
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore connects to MySQL and ensures the cursor table exists
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS relay_cursor (
			id INT PRIMARY KEY,
			last_dt_iso VARCHAR(64) NOT NULL,
			last_uid BIGINT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{sqlStore{
		db: db,
		upsert: `
			INSERT INTO relay_cursor (id, last_dt_iso, last_uid)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE last_dt_iso = VALUES(last_dt_iso), last_uid = VALUES(last_uid)
		`,
		location: fmt.Sprintf("mysql:%s@%s/%s", parsed.User, parsed.Addr, parsed.DBName),
		logger:   logger,
	}}, nil
}
