package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/mikey/digest-relay/internal/core"
)

func init() {
	message.CharsetReader = charsetReader
}

// charsetReader decodes legacy charsets (windows-1251, koi8-r, ...) to UTF-8.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unhandled charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Decode extracts sender, subject, date and the first text/plain and
// text/html bodies. Attachments are skipped. A message that cannot be read
// as MIME is returned as plain text.
func (p *Parser) Decode(raw []byte) core.MessageParts {
	var parts core.MessageParts

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		p.logger.Debug("Message is not valid MIME, using raw body", zap.Error(err))
		parts.PlainText = p.textProcessor.SanitizeUTF8(string(raw))
		return parts
	}
	defer mr.Close()

	parts.From = headerText(mr.Header, "From")
	parts.Date = headerText(mr.Header, "Date")
	if subject, err := mr.Header.Subject(); err == nil {
		parts.Subject = subject
	} else {
		parts.Subject = mr.Header.Get("Subject")
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.logger.Debug("Stopped reading message parts", zap.Error(err))
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		if disp, _, _ := h.ContentDisposition(); strings.EqualFold(disp, "attachment") {
			continue
		}

		contentType, _, _ := h.ContentType()
		contentType = strings.ToLower(contentType)
		if contentType == "" {
			contentType = "text/plain"
		}

		switch {
		case contentType == "text/plain" && parts.PlainText == "":
			parts.PlainText = p.readBody(part.Body)
		case contentType == "text/html" && parts.HTMLText == "":
			parts.HTMLText = p.readBody(part.Body)
		}
	}

	return parts
}

func (p *Parser) readBody(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		p.logger.Debug("Failed to read part body", zap.Error(err))
	}
	return p.textProcessor.SanitizeUTF8(string(body))
}

func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return v
	}
	return h.Get(key)
}
