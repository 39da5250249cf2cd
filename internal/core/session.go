package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SessionOpener dials the mailbox and selects the first folder that works
// from an ordered fallback chain.
type SessionOpener struct {
	dialer  MailboxDialer
	folders []string
	logger  *zap.Logger
}

// NewSessionOpener creates an opener trying folders in order. Empty and
// duplicate names are dropped.
func NewSessionOpener(dialer MailboxDialer, folders []string, logger *zap.Logger) *SessionOpener {
	seen := make(map[string]bool, len(folders))
	chain := make([]string, 0, len(folders))
	for _, f := range folders {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		chain = append(chain, f)
	}
	return &SessionOpener{dialer: dialer, folders: chain, logger: logger}
}

// Folders returns the fallback chain.
func (o *SessionOpener) Folders() []string {
	return o.folders
}

// Open returns a session with a folder selected, and that folder's name.
func (o *SessionOpener) Open(ctx context.Context) (MailboxSession, string, error) {
	session, err := o.dialer.Dial(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("opening mailbox session: %w", err)
	}

	var errs []error
	for _, folder := range o.folders {
		if err := session.Select(ctx, folder); err != nil {
			o.logger.Debug("Folder not selectable", zap.String("folder", folder), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", folder, err))
			continue
		}
		return session, folder, nil
	}

	_ = session.Close()
	if len(errs) == 0 {
		return nil, "", errors.New("no folders configured")
	}
	return nil, "", fmt.Errorf("selecting folder: %w", errors.Join(errs...))
}
