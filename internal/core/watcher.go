package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WatcherConfig holds the timing knobs of the watch loop.
type WatcherConfig struct {
	MaxAge      time.Duration
	IdleTimeout time.Duration
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

// DefaultWatcherConfig returns the production timings.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		MaxAge:      600 * time.Minute,
		IdleTimeout: 25 * time.Minute,
		BackoffMin:  5 * time.Second,
		BackoffMax:  60 * time.Second,
	}
}

// Watcher keeps a long-lived mailbox session, waits for server pushes and
// hands every new notification to the dispatcher.
type Watcher struct {
	opener     *SessionOpener
	fetcher    *Fetcher
	cursor     *CursorService
	pipeline   *Pipeline
	publisher  *Publisher
	dispatcher *Dispatcher
	cfg        WatcherConfig
	logger     *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWatcher creates a new watcher
func NewWatcher(
	opener *SessionOpener,
	fetcher *Fetcher,
	cursor *CursorService,
	pipeline *Pipeline,
	publisher *Publisher,
	dispatcher *Dispatcher,
	cfg WatcherConfig,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		opener:     opener,
		fetcher:    fetcher,
		cursor:     cursor,
		pipeline:   pipeline,
		publisher:  publisher,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Run loops until ctx is cancelled, reconnecting with exponential backoff
// after every session failure.
func (w *Watcher) Run(ctx context.Context) error {
	backoff := w.cfg.BackoffMin

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := w.runSession(ctx, func() { backoff = w.cfg.BackoffMin })
		if ctx.Err() != nil {
			w.logger.Info("Watcher stopped")
			return nil
		}

		w.logger.Error("Watcher session failed, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff))
		w.notifyRestart(err)

		if err := w.sleep(ctx, backoff); err != nil {
			return nil
		}
		backoff = nextBackoff(backoff, w.cfg.BackoffMax)
	}
}

func (w *Watcher) runSession(ctx context.Context, onReady func()) error {
	session, folder, err := w.opener.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			w.logger.Debug("Failed to close mailbox session", zap.Error(err))
		}
	}()

	w.logger.Info("Mailbox session ready", zap.String("folder", folder))

	initialized, err := w.cursor.InitIfUnset(ctx, func() (*Cursor, error) {
		candidates, err := w.fetcher.FetchCandidates(ctx, session)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}
		key := candidates[len(candidates)-1].Key()
		return &key, nil
	})
	if err != nil {
		return fmt.Errorf("initialising cursor: %w", err)
	}
	if initialized {
		c, _ := w.cursor.Get()
		w.logger.Info("Cursor initialised to newest message without delivering",
			zap.Time("timestamp", c.Timestamp),
			zap.Uint32("uid", c.UID))
	}

	onReady()

	for {
		woke, err := session.Idle(ctx, w.cfg.IdleTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("waiting for mailbox activity: %w", err)
		}
		w.logger.Debug("Idle wait finished", zap.Bool("server_push", woke))

		if _, err := w.Drain(ctx, session); err != nil {
			return err
		}
	}
}

// Drain fetches candidates and dispatches every fresh message that exceeds
// the cursor. The cursor advances right after each dispatch.
func (w *Watcher) Drain(ctx context.Context, session MailboxSession) (int, error) {
	candidates, err := w.fetcher.FetchCandidates(ctx, session)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	cursor, hasCursor := w.cursor.Get()
	admitted := SelectNew(candidates, cursor, hasCursor, w.now(), w.cfg.MaxAge)
	if len(admitted) == 0 {
		return 0, nil
	}

	processingID := uuid.NewString()
	w.logger.Info("Draining new notifications",
		zap.String("processing_id", processingID),
		zap.Int("count", len(admitted)))

	targets := w.publisher.Targets()
	for _, msg := range admitted {
		text, result := w.pipeline.Render(msg)

		key := msg.Key()
		w.dispatcher.Dispatch(Job{
			Name: fmt.Sprintf("digest uid=%d", key.UID),
			Run: func(ctx context.Context) error {
				return w.publisher.Publish(ctx, text, targets.UserID, false)
			},
		})

		if err := w.cursor.Set(ctx, key); err != nil {
			w.logger.Warn("Cursor advanced in memory only", zap.Error(err))
		}

		w.logger.Info("Dispatched digest",
			zap.String("processing_id", processingID),
			zap.Uint32("uid", key.UID),
			zap.Time("timestamp", key.Timestamp),
			zap.Int("listings", len(result.Listings)))
	}

	return len(admitted), nil
}

func (w *Watcher) notifyRestart(cause error) {
	text := fmt.Sprintf("⚠️ Gmail watcher перезапускается: %v", cause)
	w.dispatcher.Dispatch(Job{
		Name: "operator notice",
		Run: func(ctx context.Context) error {
			return w.publisher.Notify(ctx, text)
		},
	})
}

// SelectNew returns, in order, the candidates that are fresh relative to now
// and strictly exceed the cursor.
func SelectNew(candidates []CandidateMessage, cursor Cursor, hasCursor bool, now time.Time, maxAge time.Duration) []CandidateMessage {
	var admitted []CandidateMessage
	for _, msg := range candidates {
		if !IsFresh(msg.Timestamp, now, maxAge) {
			continue
		}
		if hasCursor && !msg.Key().After(cursor) {
			continue
		}
		admitted = append(admitted, msg)
	}
	return admitted
}

// IsFresh reports whether ts lies within maxAge of now, inclusive.
func IsFresh(ts, now time.Time, maxAge time.Duration) bool {
	return !ts.Before(now.Add(-maxAge))
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
