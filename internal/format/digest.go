package format

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/utils"
)

// MaxMessageRunes is the Telegram limit for a single text message.
const MaxMessageRunes = 4096

// NoListingsNotice is rendered when a digest yielded no listings.
const NoListingsNotice = "Не смог распарсить проекты (если надо — подточим парсер под HTML письма)."

// Options controls digest composition.
type Options struct {
	Title    string
	MaxItems int
}

// DefaultOptions returns the composer defaults.
func DefaultOptions() Options {
	return Options{
		Title:    "Kwork: новые проекты",
		MaxItems: 10,
	}
}

// Composer renders ParseResults as Telegram HTML messages.
type Composer struct {
	opts          Options
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewComposer creates a new Composer
func NewComposer(opts Options, textProcessor *utils.TextProcessor, logger *zap.Logger) *Composer {
	if opts.Title == "" {
		opts.Title = DefaultOptions().Title
	}
	return &Composer{
		opts:          opts,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Compose builds the digest. Listings beyond MaxItems are omitted, and
// trailing listings are dropped while the message exceeds MaxMessageRunes.
func (c *Composer) Compose(parts core.MessageParts, result core.ParseResult) string {
	header := c.header(parts, result)

	listings := result.Listings
	if c.opts.MaxItems > 0 && len(listings) > c.opts.MaxItems {
		listings = listings[:c.opts.MaxItems]
	}

	blocks := make([]string, 0, len(listings))
	for _, l := range listings {
		blocks = append(blocks, listingBlock(l))
	}

	if len(blocks) == 0 {
		return strings.TrimSpace(header + "\n\n" + NoListingsNotice)
	}

	text := assemble(header, blocks)
	for utf8.RuneCountInString(text) > MaxMessageRunes && len(blocks) > 1 {
		blocks = blocks[:len(blocks)-1]
		text = assemble(header, blocks)
	}

	if dropped := len(listings) - len(blocks); dropped > 0 {
		c.logger.Debug("Dropped listings to fit message limit", zap.Int("dropped", dropped))
	}

	// A single oversized listing is cut rather than lost.
	return c.textProcessor.TruncateText(text, MaxMessageRunes, "…")
}

func (c *Composer) header(parts core.MessageParts, result core.ParseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📬 <b>%s</b>", html.EscapeString(c.opts.Title))

	switch {
	case result.Available != nil && result.Total != nil && result.Window != "":
		fmt.Fprintf(&b, "\n➕ <b>%d</b> подходящих (из %d за %s)",
			*result.Available, *result.Total, html.EscapeString(result.Window))
	case result.Available != nil:
		fmt.Fprintf(&b, "\n➕ <b>%d</b> подходящих", *result.Available)
	}

	if parts.Subject != "" {
		fmt.Fprintf(&b, "\n🧾 <i>%s</i>", html.EscapeString(parts.Subject))
	}

	return b.String()
}

func listingBlock(l core.Listing) string {
	title := html.EscapeString(l.Title)
	if l.ResponseURL != "" {
		title = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(l.ResponseURL), title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "• %s — <b>%s</b>", title, html.EscapeString(l.Price))
	if l.Buyer != "" {
		fmt.Fprintf(&b, " (👤 %s)", html.EscapeString(l.Buyer))
	}
	if l.Category != "" {
		fmt.Fprintf(&b, "\n  %s", html.EscapeString(l.Category))
	}
	if l.HiredNote != "" {
		fmt.Fprintf(&b, "\n  %s", html.EscapeString(l.HiredNote))
	}
	return b.String()
}

func assemble(header string, blocks []string) string {
	return strings.TrimSpace(header + "\n\n" + strings.Join(blocks, "\n\n"))
}
