package ports

import (
	"github.com/mikey/digest-relay/internal/core"
)

// CursorRepository is a persistent backend for the delivery cursor
type CursorRepository interface {
	core.CursorStore

	// Location describes where the cursor is kept, for status output
	Location() string

	// Close releases the backend's resources
	Close() error
}
