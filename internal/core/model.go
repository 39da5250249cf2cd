package core

import (
	"fmt"
	"time"
)

// Cursor identifies the last notification that was handed to delivery.
// Keys are ordered by timestamp first and UID second.
type Cursor struct {
	Timestamp time.Time
	UID       uint32
}

// NewCursor normalises the timestamp to UTC.
func NewCursor(ts time.Time, uid uint32) Cursor {
	return Cursor{Timestamp: ts.UTC(), UID: uid}
}

// Compare returns -1, 0 or 1 depending on whether c sorts before, equal to
// or after other.
func (c Cursor) Compare(other Cursor) int {
	switch {
	case c.Timestamp.Before(other.Timestamp):
		return -1
	case c.Timestamp.After(other.Timestamp):
		return 1
	case c.UID < other.UID:
		return -1
	case c.UID > other.UID:
		return 1
	default:
		return 0
	}
}

// After reports whether c strictly exceeds other.
func (c Cursor) After(other Cursor) bool {
	return c.Compare(other) > 0
}

func (c Cursor) String() string {
	return fmt.Sprintf("%s (uid=%d)", c.Timestamp.UTC().Format("2006-01-02 15:04 UTC"), c.UID)
}

// CandidateMessage is a fetched notification that has not been parsed yet.
// UIDs are only meaningful within the session that produced them.
type CandidateMessage struct {
	Timestamp time.Time
	UID       uint32
	Raw       []byte
}

// Key returns the dedup key of the message.
func (m CandidateMessage) Key() Cursor {
	return NewCursor(m.Timestamp, m.UID)
}

// MessageParts holds the decoded parts of a notification.
type MessageParts struct {
	From      string
	Subject   string
	Date      string
	PlainText string
	HTMLText  string
}

// Listing is one record recovered from a notification body.
type Listing struct {
	Title       string
	Category    string
	Buyer       string
	HiredNote   string
	Price       string
	ResponseURL string
}

// ParseResult is the structured content of one notification.
type ParseResult struct {
	Available *int
	Total     *int
	Window    string
	Listings  []Listing
}
