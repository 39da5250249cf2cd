package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/digest-relay/internal/core"
)

// timestampLayout matches ISO-8601 with an explicit +00:00 offset, the
// format existing state files were written in.
const timestampLayout = "2006-01-02T15:04:05.999999-07:00"

// ErrMalformed is returned when stored cursor data cannot be decoded
var ErrMalformed = errors.New("malformed cursor state")

// document is the persisted cursor layout
type document struct {
	LastDTISO string `json:"last_dt_iso"`
	LastUID   *int64 `json:"last_uid"`
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(timestampLayout)
}

// parseTimestamp accepts RFC 3339 and offset-less timestamps; the latter
// are taken as UTC.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"} {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, s)
}

func encodeCursor(c core.Cursor) ([]byte, error) {
	uid := int64(c.UID)
	return json.Marshal(document{
		LastDTISO: formatTimestamp(c.Timestamp),
		LastUID:   &uid,
	})
}

// decodeCursor returns nil without error when the document holds no cursor.
func decodeCursor(data []byte) (*core.Cursor, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.LastDTISO == "" || doc.LastUID == nil {
		return nil, nil
	}
	return cursorFrom(doc.LastDTISO, *doc.LastUID)
}

func cursorFrom(ts string, uid int64) (*core.Cursor, error) {
	parsed, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	if uid < 0 || uid > int64(^uint32(0)) {
		return nil, fmt.Errorf("%w: uid %d out of range", ErrMalformed, uid)
	}
	c := core.NewCursor(parsed, uint32(uid))
	return &c, nil
}
