package imap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/mikey/digest-relay/internal/core"
)

// Dialer opens authenticated IMAP sessions over implicit TLS
type Dialer struct {
	addr     string
	username string
	password string
	logger   *zap.Logger
}

// NewDialer creates a new IMAP dialer
func NewDialer(addr, username, password string, logger *zap.Logger) *Dialer {
	return &Dialer{
		addr:     addr,
		username: username,
		password: password,
		logger:   logger,
	}
}

// Dial connects and logs in. The connection is torn down when ctx is
// cancelled, which unblocks any command in flight.
func (d *Dialer) Dial(ctx context.Context) (core.MailboxSession, error) {
	s := &Session{
		wake:    make(chan struct{}, 1),
		logger:  d.logger,
		queries: make(map[string]*imap.SearchCriteria),
	}

	options := &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages != nil {
					s.signal()
				}
			},
		},
	}

	client, err := imapclient.DialTLS(d.addr, options)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", d.addr, err)
	}
	s.client = client
	s.stop = context.AfterFunc(ctx, func() { _ = client.Close() })

	if err := client.Login(d.username, d.password).Wait(); err != nil {
		s.stop()
		_ = client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", d.username, err)
	}

	d.logger.Debug("IMAP session established", zap.String("addr", d.addr))
	return s, nil
}

// Session is one authenticated IMAP connection
type Session struct {
	client *imapclient.Client
	wake   chan struct{}
	stop   func() bool
	logger *zap.Logger

	mu      sync.Mutex
	queries map[string]*imap.SearchCriteria
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Select opens the folder read-write so that IDLE reports new messages
func (s *Session) Select(ctx context.Context, folder string) error {
	if _, err := s.client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", folder, err)
	}
	s.drainWake()
	return nil
}

// Search runs the query and returns matching UIDs in ascending order
func (s *Session) Search(ctx context.Context, query string) ([]uint32, error) {
	criteria, err := s.criteria(query)
	if err != nil {
		return nil, err
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	all := data.AllUIDs()
	uids := make([]uint32, 0, len(all))
	for _, uid := range all {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

// Fetch returns internal dates and full contents without setting \Seen
func (s *Session) Fetch(ctx context.Context, uids []uint32) ([]core.FetchedMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	set := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		set = append(set, imap.UID(uid))
	}

	section := &imap.FetchItemBodySection{Peek: true}
	options := &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}

	buffers, err := s.client.Fetch(imap.UIDSetNum(set...), options).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	messages := make([]core.FetchedMessage, 0, len(buffers))
	for _, buf := range buffers {
		messages = append(messages, core.FetchedMessage{
			UID:          uint32(buf.UID),
			InternalDate: buf.InternalDate,
			Raw:          buf.FindBodySection(section),
		})
	}
	return messages, nil
}

// Idle waits for an EXISTS notification, the timeout, or cancellation.
// A notification received since the last call returns immediately.
func (s *Session) Idle(ctx context.Context, timeout time.Duration) (bool, error) {
	select {
	case <-s.wake:
		return true, nil
	default:
	}

	cmd, err := s.client.Idle()
	if err != nil {
		return false, fmt.Errorf("starting IDLE: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	woken := false
	select {
	case <-s.wake:
		woken = true
	case <-timer.C:
	case <-ctx.Done():
	case err := <-done:
		if err != nil {
			return false, fmt.Errorf("IDLE terminated: %w", err)
		}
		return false, nil
	}

	closeErr := cmd.Close()
	waitErr := <-done
	if ctx.Err() != nil {
		return woken, ctx.Err()
	}
	if err := errors.Join(closeErr, waitErr); err != nil {
		return woken, fmt.Errorf("stopping IDLE: %w", err)
	}
	return woken, nil
}

// Close logs out and closes the connection
func (s *Session) Close() error {
	if s.stop != nil {
		s.stop()
	}
	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Debug("IMAP logout failed", zap.Error(err))
	}
	return s.client.Close()
}

func (s *Session) drainWake() {
	select {
	case <-s.wake:
	default:
	}
}

func (s *Session) criteria(query string) (*imap.SearchCriteria, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.queries[query]; ok {
		return c, nil
	}

	c, ignored, err := TranslateQuery(query)
	if err != nil {
		return nil, fmt.Errorf("invalid search query: %w", err)
	}
	if len(ignored) > 0 {
		s.logger.Warn("Ignoring unsupported search operators", zap.Strings("operators", ignored))
	}
	s.queries[query] = c
	return c, nil
}
