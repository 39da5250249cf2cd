package core

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// DefaultFetchLimit bounds how many of the newest matches are retrieved.
const DefaultFetchLimit = 80

// SenderFilter decides whether a decoded sender is acceptable.
type SenderFilter interface {
	Allows(from string) bool
}

// Fetcher retrieves candidate notifications from a selected mailbox.
type Fetcher struct {
	query   string
	limit   int
	decoder MessageDecoder
	senders SenderFilter
	logger  *zap.Logger
}

// NewFetcher creates a fetcher for the given search query. A nil sender
// filter accepts every message.
func NewFetcher(query string, limit int, decoder MessageDecoder, senders SenderFilter, logger *zap.Logger) *Fetcher {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	return &Fetcher{
		query:   query,
		limit:   limit,
		decoder: decoder,
		senders: senders,
		logger:  logger,
	}
}

// Query returns the configured search query.
func (f *Fetcher) Query() string {
	return f.query
}

// FetchCandidates searches the session and returns candidates sorted by
// (timestamp, uid) ascending. No matches yield an empty slice, not an error.
func (f *Fetcher) FetchCandidates(ctx context.Context, session MailboxSession) ([]CandidateMessage, error) {
	uids, err := session.Search(ctx, f.query)
	if err != nil {
		return nil, fmt.Errorf("searching mailbox: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	if len(uids) > f.limit {
		uids = uids[len(uids)-f.limit:]
	}

	fetched, err := session.Fetch(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("fetching %d messages: %w", len(uids), err)
	}

	byUID := make(map[uint32]FetchedMessage, len(fetched))
	for _, m := range fetched {
		byUID[m.UID] = m
	}

	candidates := make([]CandidateMessage, 0, len(uids))
	for _, uid := range uids {
		m, ok := byUID[uid]
		if !ok || m.InternalDate.IsZero() || len(m.Raw) == 0 {
			f.logger.Debug("Skipping incomplete fetch result", zap.Uint32("uid", uid))
			continue
		}
		if f.senders != nil && f.decoder != nil {
			parts := f.decoder.Decode(m.Raw)
			if !f.senders.Allows(parts.From) {
				f.logger.Debug("Skipping message from unexpected sender",
					zap.Uint32("uid", uid),
					zap.String("from", parts.From))
				continue
			}
		}
		candidates = append(candidates, CandidateMessage{
			Timestamp: m.InternalDate.UTC(),
			UID:       uid,
			Raw:       m.Raw,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Key().Compare(candidates[j].Key()) < 0
	})

	return candidates, nil
}
