package core

import "errors"

// ErrNoCandidates is returned when the search matched nothing.
var ErrNoCandidates = errors.New("no messages match the query")

// Tier classifies how an operation ended.
type Tier int

const (
	// TierOK means the operation did everything it was asked to.
	TierOK Tier = iota
	// TierSoft means the operation finished but a secondary step failed.
	TierSoft
	// TierFatal means the operation could not complete.
	TierFatal
)

func (t Tier) String() string {
	switch t {
	case TierOK:
		return "ok"
	case TierSoft:
		return "soft-failure"
	case TierFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome names what an on-demand operation did.
type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeNoMessages Outcome = "no_messages"
	OutcomeStale      Outcome = "stale"
	OutcomeNothingNew Outcome = "nothing_new"
	OutcomeReset      Outcome = "reset"
	OutcomeFailed     Outcome = "failed"
)

// OperationResult is returned by every on-demand operation.
type OperationResult struct {
	Outcome   Outcome
	Tier      Tier
	Folder    string
	Candidate *Cursor
	Cursor    *Cursor
	Listings  int
	Err       error
}

func failed(folder string, err error) *OperationResult {
	return &OperationResult{Outcome: OutcomeFailed, Tier: TierFatal, Folder: folder, Err: err}
}
