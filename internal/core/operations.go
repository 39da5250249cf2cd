package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusReport is a snapshot of the relay state for the status command.
type StatusReport struct {
	Cursor            *Cursor
	StateLocation     string
	Folder            string
	Query             string
	MaxAge            time.Duration
	SendWatcherToUser bool
}

// Operations are the synchronous on-demand variants of the watch cycle.
// Each call opens and closes its own mailbox session.
type Operations struct {
	opener        *SessionOpener
	fetcher       *Fetcher
	cursor        *CursorService
	pipeline      *Pipeline
	publisher     *Publisher
	maxAge        time.Duration
	stateLocation string
	logger        *zap.Logger

	now func() time.Time
}

// NewOperations creates the on-demand operation set
func NewOperations(
	opener *SessionOpener,
	fetcher *Fetcher,
	cursor *CursorService,
	pipeline *Pipeline,
	publisher *Publisher,
	maxAge time.Duration,
	stateLocation string,
	logger *zap.Logger,
) *Operations {
	return &Operations{
		opener:        opener,
		fetcher:       fetcher,
		cursor:        cursor,
		pipeline:      pipeline,
		publisher:     publisher,
		maxAge:        maxAge,
		stateLocation: stateLocation,
		logger:        logger,
		now:           time.Now,
	}
}

// CheckAndDeliver delivers the newest message if it is fresh and not yet
// seen. The user destination always receives a copy.
func (o *Operations) CheckAndDeliver(ctx context.Context, userID string) *OperationResult {
	return o.withNewest(ctx, "check", func(folder string, newest CandidateMessage) *OperationResult {
		key := newest.Key()

		if !IsFresh(newest.Timestamp, o.now(), o.maxAge) {
			return &OperationResult{Outcome: OutcomeStale, Tier: TierOK, Folder: folder, Candidate: &key}
		}

		if cursor, ok := o.cursor.Get(); ok && !key.After(cursor) {
			return &OperationResult{Outcome: OutcomeNothingNew, Tier: TierOK, Folder: folder, Candidate: &key, Cursor: &cursor}
		}

		return o.deliver(ctx, folder, newest, userID)
	})
}

// ForceDeliver delivers the newest message regardless of freshness and cursor.
func (o *Operations) ForceDeliver(ctx context.Context, userID string) *OperationResult {
	return o.withNewest(ctx, "force", func(folder string, newest CandidateMessage) *OperationResult {
		return o.deliver(ctx, folder, newest, userID)
	})
}

// Reset advances the cursor to the newest message without delivering it.
func (o *Operations) Reset(ctx context.Context) *OperationResult {
	return o.withNewest(ctx, "reset", func(folder string, newest CandidateMessage) *OperationResult {
		key := newest.Key()
		res := &OperationResult{Outcome: OutcomeReset, Tier: TierOK, Folder: folder, Candidate: &key}

		if err := o.cursor.Set(ctx, key); err != nil {
			res.Tier = TierSoft
			res.Err = err
		}
		if c, ok := o.cursor.Get(); ok {
			res.Cursor = &c
		}
		return res
	})
}

// Status reports the current cursor and configuration.
func (o *Operations) Status() StatusReport {
	report := StatusReport{
		StateLocation:     o.stateLocation,
		Query:             o.fetcher.Query(),
		MaxAge:            o.maxAge,
		SendWatcherToUser: o.publisher.Targets().SendWatcherToUser,
	}
	if folders := o.opener.Folders(); len(folders) > 0 {
		report.Folder = folders[0]
	}
	if c, ok := o.cursor.Get(); ok {
		report.Cursor = &c
	}
	return report
}

func (o *Operations) withNewest(
	ctx context.Context,
	name string,
	fn func(folder string, newest CandidateMessage) *OperationResult,
) *OperationResult {
	logger := o.logger.With(zap.String("operation", name), zap.String("processing_id", uuid.NewString()))

	session, folder, err := o.opener.Open(ctx)
	if err != nil {
		logger.Error("Failed to open mailbox session", zap.Error(err))
		return failed("", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug("Failed to close mailbox session", zap.Error(err))
		}
	}()

	candidates, err := o.fetcher.FetchCandidates(ctx, session)
	if err != nil {
		logger.Error("Failed to fetch candidates", zap.Error(err))
		return failed(folder, err)
	}
	if len(candidates) == 0 {
		return &OperationResult{Outcome: OutcomeNoMessages, Tier: TierOK, Folder: folder, Err: ErrNoCandidates}
	}

	res := fn(folder, candidates[len(candidates)-1])
	logger.Info("Operation finished",
		zap.String("outcome", string(res.Outcome)),
		zap.Stringer("tier", res.Tier),
		zap.String("folder", folder))
	return res
}

func (o *Operations) deliver(ctx context.Context, folder string, msg CandidateMessage, userID string) *OperationResult {
	key := msg.Key()
	text, result := o.pipeline.Render(msg)

	if err := o.publisher.Publish(ctx, text, userID, true); err != nil {
		return &OperationResult{Outcome: OutcomeFailed, Tier: TierFatal, Folder: folder, Candidate: &key, Err: err}
	}

	res := &OperationResult{
		Outcome:   OutcomeDelivered,
		Tier:      TierOK,
		Folder:    folder,
		Candidate: &key,
		Listings:  len(result.Listings),
	}
	if err := o.cursor.Set(ctx, key); err != nil {
		res.Tier = TierSoft
		res.Err = err
	}
	if c, ok := o.cursor.Get(); ok {
		res.Cursor = &c
	}
	return res
}
