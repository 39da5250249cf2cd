package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakeStore struct {
	mu      sync.Mutex
	cursor  *Cursor
	loadErr error
	saveErr error
	saves   []Cursor
}

func (s *fakeStore) Load(ctx context.Context) (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.cursor == nil {
		return nil, nil
	}
	c := *s.cursor
	return &c, nil
}

func (s *fakeStore) Save(ctx context.Context, cursor Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves = append(s.saves, cursor)
	s.cursor = &cursor
	return nil
}

func (s *fakeStore) saved() []Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Cursor(nil), s.saves...)
}

type fakeSession struct {
	mu          sync.Mutex
	badFolders  map[string]bool
	selected    []string
	messages    []FetchedMessage
	searchErr   error
	fetchErr    error
	fetched     [][]uint32
	idle        func(call int) (bool, error)
	idleCalls   int
	closed      bool
	lastQueries []string
}

func (s *fakeSession) Select(ctx context.Context, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = append(s.selected, folder)
	if s.badFolders[folder] {
		return fmt.Errorf("NO [NONEXISTENT] %s", folder)
	}
	return nil
}

func (s *fakeSession) Search(ctx context.Context, query string) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQueries = append(s.lastQueries, query)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	uids := make([]uint32, 0, len(s.messages))
	for _, m := range s.messages {
		uids = append(uids, m.UID)
	}
	return uids, nil
}

func (s *fakeSession) Fetch(ctx context.Context, uids []uint32) ([]FetchedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, append([]uint32(nil), uids...))
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	want := make(map[uint32]bool, len(uids))
	for _, uid := range uids {
		want[uid] = true
	}
	var out []FetchedMessage
	for _, m := range s.messages {
		if want[m.UID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeSession) Idle(ctx context.Context, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	s.idleCalls++
	call := s.idleCalls
	idle := s.idle
	s.mu.Unlock()

	if idle == nil {
		return false, errors.New("connection reset by peer")
	}
	return idle(call)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) add(msgs ...FetchedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDialer struct {
	mu      sync.Mutex
	session *fakeSession
	err     error
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context) (MailboxSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

type sentMessage struct {
	destination    string
	text           string
	disablePreview bool
}

type fakeDeliverer struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]error
}

func (d *fakeDeliverer) Send(ctx context.Context, destination string, text string, disablePreview bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail[destination]; err != nil {
		return err
	}
	d.sent = append(d.sent, sentMessage{destination: destination, text: text, disablePreview: disablePreview})
	return nil
}

func (d *fakeDeliverer) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentMessage(nil), d.sent...)
}

func (d *fakeDeliverer) to(destination string) []string {
	var texts []string
	for _, m := range d.messages() {
		if m.destination == destination {
			texts = append(texts, m.text)
		}
	}
	return texts
}

// lineDecoder reads the sender from the first line and the subject from the rest.
type lineDecoder struct{}

func (lineDecoder) Decode(raw []byte) MessageParts {
	from, subject, _ := strings.Cut(string(raw), "\n")
	return MessageParts{From: from, Subject: subject}
}

type subjectParser struct{}

func (subjectParser) Parse(parts MessageParts) ParseResult {
	return ParseResult{Listings: []Listing{{Title: parts.Subject}}}
}

type subjectFormatter struct{}

func (subjectFormatter) Compose(parts MessageParts, result ParseResult) string {
	return "digest: " + parts.Subject
}

type senderFunc func(from string) bool

func (f senderFunc) Allows(from string) bool { return f(from) }

var baseTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func notification(uid uint32, ts time.Time) FetchedMessage {
	return FetchedMessage{
		UID:          uid,
		InternalDate: ts,
		Raw:          []byte(fmt.Sprintf("news@kwork.ru\nmsg %d", uid)),
	}
}

const (
	testChannel = "@kwork_feed"
	testUser    = "1001"
)

type relay struct {
	session    *fakeSession
	dialer     *fakeDialer
	store      *fakeStore
	deliverer  *fakeDeliverer
	cursor     *CursorService
	opener     *SessionOpener
	fetcher    *Fetcher
	pipeline   *Pipeline
	publisher  *Publisher
	dispatcher *Dispatcher
}

func newRelay(t *testing.T, session *fakeSession, store *fakeStore) *relay {
	t.Helper()
	logger := zaptest.NewLogger(t)

	if session == nil {
		session = &fakeSession{}
	}
	if store == nil {
		store = &fakeStore{}
	}
	dialer := &fakeDialer{session: session}
	deliverer := &fakeDeliverer{}

	return &relay{
		session:    session,
		dialer:     dialer,
		store:      store,
		deliverer:  deliverer,
		cursor:     NewCursorService(context.Background(), store, logger),
		opener:     NewSessionOpener(dialer, []string{"Kwork", "[Gmail]/All Mail", "INBOX"}, logger),
		fetcher:    NewFetcher("from:kwork.ru", 0, lineDecoder{}, nil, logger),
		pipeline:   NewPipeline(lineDecoder{}, subjectParser{}, subjectFormatter{}, logger),
		publisher:  NewPublisher(deliverer, Targets{ChannelID: testChannel, UserID: testUser, DisablePreview: true}, nil, logger),
		dispatcher: NewDispatcher(logger),
	}
}

func (r *relay) watcher(t *testing.T, cfg WatcherConfig, now time.Time) *Watcher {
	w := NewWatcher(r.opener, r.fetcher, r.cursor, r.pipeline, r.publisher, r.dispatcher, cfg, zaptest.NewLogger(t))
	w.now = func() time.Time { return now }
	return w
}

func (r *relay) operations(t *testing.T, maxAge time.Duration, now time.Time) *Operations {
	o := NewOperations(r.opener, r.fetcher, r.cursor, r.pipeline, r.publisher, maxAge, "/data/state.json", zaptest.NewLogger(t))
	o.now = func() time.Time { return now }
	return o
}

// runDispatcher drains queued jobs and stops the loop before returning.
func runDispatcher(t *testing.T, d *Dispatcher, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !until() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}
