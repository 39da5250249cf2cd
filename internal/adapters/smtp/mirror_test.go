package smtp

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type received struct {
	from       string
	recipients []string
	data       []byte
}

type backend struct {
	mu       sync.Mutex
	messages []received
	reject   string
}

func (b *backend) snapshot() []received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]received(nil), b.messages...)
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend *backend
	current received
}

func (s *session) AuthPlain(_ []byte) error { return smtp.ErrAuthUnsupported }

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == s.backend.reject {
		return &smtp.SMTPError{Code: 550, Message: "no such user"}
	}
	s.current.recipients = append(s.current.recipients, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = data

	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.current)
	s.backend.mu.Unlock()
	return nil
}

func (s *session) Reset()        { s.current = received{} }
func (s *session) Logout() error { return nil }

func startServer(t *testing.T, be *backend) (string, int) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := smtp.NewServer(be)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true
	go func() { _ = server.Serve(l) }()
	t.Cleanup(func() { server.Close() })

	addr := l.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestMirrorSendsDigest(t *testing.T) {
	be := &backend{reject: "nobody@example.com"}
	host, port := startServer(t, be)

	m := NewMirror(Options{
		Host:    host,
		Port:    port,
		From:    "relay@example.com",
		To:      []string{"ops@example.com", "nobody@example.com"},
		Subject: "Digest",
	}, zaptest.NewLogger(t))
	m.now = func() time.Time { return time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) }

	digest := "📬 <b>Kwork</b>\n• <a href=\"https://kwork.ru/new_offer?project=1\">Бот</a> — <b>5 000 ₽</b>"
	require.NoError(t, m.Send(context.Background(), m.Destination(), digest, true))

	messages := be.snapshot()
	require.Len(t, messages, 1)
	msg := messages[0]
	assert.Equal(t, "relay@example.com", msg.from)
	assert.Equal(t, []string{"ops@example.com"}, msg.recipients)

	mr, err := mail.CreateReader(bytes.NewReader(msg.data))
	require.NoError(t, err)
	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Digest", subject)

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "📬 Kwork\n• Бот — 5 000 ₽", strings.TrimSpace(string(body)))
}

func TestMirrorAllRecipientsRejected(t *testing.T) {
	be := &backend{reject: "nobody@example.com"}
	host, port := startServer(t, be)

	m := NewMirror(Options{Host: host, Port: port, From: "relay@example.com"}, zaptest.NewLogger(t))
	err := m.Send(context.Background(), "nobody@example.com", "text", true)
	assert.ErrorContains(t, err, "all recipients were rejected")
	assert.Empty(t, be.snapshot())
}

func TestMirrorNoRecipients(t *testing.T) {
	m := NewMirror(Options{}, zaptest.NewLogger(t))
	assert.Error(t, m.Send(context.Background(), " , ", "text", true))
}
