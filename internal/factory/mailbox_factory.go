package factory

import (
	"github.com/mikey/digest-relay/internal/adapters/imap"
	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/parser"
	"github.com/mikey/digest-relay/internal/whitelist"
	"go.uber.org/zap"
)

// MailboxFactory creates the mailbox access chain
type MailboxFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailboxFactory creates a new mailbox factory
func NewMailboxFactory(cfg *config.Config, logger *zap.Logger) *MailboxFactory {
	return &MailboxFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSessionOpener returns an opener that tries the configured folder,
// then the all-mail folder, then INBOX
func (f *MailboxFactory) CreateSessionOpener() *core.SessionOpener {
	imapCfg := f.cfg.GetIMAP()
	dialer := imap.NewDialer(imapCfg.Addr(), imapCfg.Username, imapCfg.Password, f.logger.Named("imap"))

	folders := []string{imapCfg.Folder, imapCfg.AllMailFolder, "INBOX"}
	return core.NewSessionOpener(dialer, folders, f.logger)
}

// CreateFetcher returns the candidate fetcher for the configured query
func (f *MailboxFactory) CreateFetcher(p *parser.Parser) *core.Fetcher {
	imapCfg := f.cfg.GetIMAP()

	// A nil filter skips decoding during fetch
	var senders core.SenderFilter
	if allowed := f.cfg.GetDigest().AllowedSenders; len(allowed) > 0 {
		senders = whitelist.NewChecker(allowed, f.logger)
	}
	return core.NewFetcher(imapCfg.Query, imapCfg.FetchLimit, p, senders, f.logger)
}
