package ports

import (
	"github.com/mikey/digest-relay/internal/core"
)

// DigestMirror receives a copy of every published digest
type DigestMirror interface {
	core.Deliverer

	// Destination is the address the mirror delivers to
	Destination() string
}
