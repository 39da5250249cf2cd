package core

import (
	"context"
	"time"
)

// FetchedMessage is a raw fetch result. A zero InternalDate or a nil Raw
// means the server did not return that item.
type FetchedMessage struct {
	UID          uint32
	InternalDate time.Time
	Raw          []byte
}

// MailboxSession is one authenticated mailbox connection.
type MailboxSession interface {
	// Select opens the named folder.
	Select(ctx context.Context, folder string) error

	// Search runs the configured query and returns matching UIDs in ascending order.
	Search(ctx context.Context, query string) ([]uint32, error)

	// Fetch returns the internal date and full content for the given UIDs.
	Fetch(ctx context.Context, uids []uint32) ([]FetchedMessage, error)

	// Idle blocks until the server reports mailbox activity or timeout elapses.
	// It returns true when woken by the server.
	Idle(ctx context.Context, timeout time.Duration) (bool, error)

	// Close logs out and releases the connection.
	Close() error
}

// MailboxDialer opens new authenticated sessions.
type MailboxDialer interface {
	Dial(ctx context.Context) (MailboxSession, error)
}

// CursorStore persists the cursor.
type CursorStore interface {
	// Load returns the stored cursor, or nil when nothing is stored.
	Load(ctx context.Context) (*Cursor, error)

	// Save durably replaces the stored cursor.
	Save(ctx context.Context, cursor Cursor) error
}

// Deliverer sends a formatted message to one destination.
type Deliverer interface {
	Send(ctx context.Context, destination string, text string, disablePreview bool) error
}

// Parser turns decoded message parts into listings.
type Parser interface {
	Parse(parts MessageParts) ParseResult
}

// Formatter renders a parse result into the outgoing message text.
type Formatter interface {
	Compose(parts MessageParts, result ParseResult) string
}

// MessageDecoder decodes a raw RFC 822 message.
type MessageDecoder interface {
	Decode(raw []byte) MessageParts
}
