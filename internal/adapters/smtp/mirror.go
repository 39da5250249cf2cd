package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Options configures the e-mail mirror
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	StartTLS bool
	Subject  string
}

// Mirror e-mails a copy of every published digest
type Mirror struct {
	opts   Options
	logger *zap.Logger

	dial func(ctx context.Context, addr string) (*smtp.Client, error)
	now  func() time.Time
}

// NewMirror creates a new SMTP mirror
func NewMirror(opts Options, logger *zap.Logger) *Mirror {
	if opts.Subject == "" {
		opts.Subject = "Kwork digest"
	}
	m := &Mirror{
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	m.dial = m.dialServer
	return m
}

// Destination returns the recipient list
func (m *Mirror) Destination() string {
	return strings.Join(m.opts.To, ", ")
}

// Send delivers text to the comma separated recipients in destination
func (m *Mirror) Send(ctx context.Context, destination, text string, _ bool) error {
	recipients := splitRecipients(destination)
	if len(recipients) == 0 {
		return fmt.Errorf("no mirror recipients")
	}

	body, err := m.buildMessage(recipients, text)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.opts.Host, m.opts.Port)
	c, err := m.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer c.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if m.opts.Username != "" {
		auth := sasl.NewPlainClient("", m.opts.Username, m.opts.Password)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(m.opts.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			m.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(body); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message was accepted already
		m.logger.Warn("QUIT command failed", zap.Error(err))
	}

	m.logger.Debug("Digest mirrored", zap.Strings("recipients", recipients))
	return nil
}

func (m *Mirror) dialServer(ctx context.Context, addr string) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set connection deadline: %w", err)
	}

	if m.opts.StartTLS {
		return smtp.NewClientStartTLS(conn, &tls.Config{ServerName: m.opts.Host})
	}
	return smtp.NewClient(conn), nil
}

// buildMessage wraps the HTML digest in a MIME message with a plain text
// alternative.
func (m *Mirror) buildMessage(recipients []string, text string) ([]byte, error) {
	var h mail.Header
	h.SetDate(m.now())
	h.SetSubject(m.opts.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: m.opts.From}})

	to := make([]*mail.Address, 0, len(recipients))
	for _, r := range recipients {
		to = append(to, &mail.Address{Address: r})
	}
	h.SetAddressList("To", to)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}

	if err := writePart(tw, "text/plain", plainText(text)); err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/html", strings.ReplaceAll(text, "\n", "<br>\n")); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close inline part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}

	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	w, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

// plainText strips Telegram HTML markup.
func plainText(text string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(text, ""))
}

func splitRecipients(destination string) []string {
	var out []string
	for _, r := range strings.Split(destination, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
