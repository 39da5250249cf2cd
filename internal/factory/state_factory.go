package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/digest-relay/internal/adapters/state"
	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/ports"
	"go.uber.org/zap"
)

// StateFactory creates cursor repositories based on configuration
type StateFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStateFactory creates a new state factory
func NewStateFactory(cfg *config.Config, logger *zap.Logger) *StateFactory {
	return &StateFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCursorRepository creates a cursor repository based on the configuration
func (f *StateFactory) CreateCursorRepository() (ports.CursorRepository, error) {
	stateCfg := f.cfg.GetState()

	switch stateCfg.Type {
	case "", "file":
		f.logger.Info("Using file state", zap.String("path", stateCfg.File))
		return state.NewFileStore(stateCfg.File, f.logger), nil
	case "memory":
		f.logger.Warn("Using in-memory state, the cursor is lost on restart")
		return state.NewMemoryStore(f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(stateCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return state.NewSQLiteStore(stateCfg.SQLitePath, f.logger)
	case "mysql":
		return state.NewMySQLStore(stateCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported state type: %s", stateCfg.Type)
	}
}
