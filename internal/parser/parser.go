package parser

import (
	"go.uber.org/zap"

	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/utils"
)

// Options controls how listing links are recognised in HTML bodies.
type Options struct {
	SiteHost  string
	LinkParam string
}

// DefaultOptions returns options for the Kwork digest format.
func DefaultOptions() Options {
	return Options{
		SiteHost:  "kwork.ru",
		LinkParam: "project",
	}
}

// Parser turns raw digest e-mails into ParseResults.
type Parser struct {
	opts          Options
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// New creates a new Parser
func New(opts Options, textProcessor *utils.TextProcessor, logger *zap.Logger) *Parser {
	return &Parser{
		opts:          opts,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Parse prefers the HTML body: it is rendered to text, parsed, and listing
// links are attached to records in document order. Without HTML the plain
// body is parsed and records carry no links. Parse never panics.
func (p *Parser) Parse(parts core.MessageParts) (result core.ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Parser panicked, returning empty result", zap.Any("panic", r))
			result = core.ParseResult{}
		}
	}()

	if parts.HTMLText != "" {
		result = ParseText(RenderText(parts.HTMLText))
		links := ExtractLinks(parts.HTMLText, p.opts.SiteHost, p.opts.LinkParam)
		attachLinks(result.Listings, links)

		p.logger.Debug("Parsed HTML body",
			zap.Int("listings", len(result.Listings)),
			zap.Int("links", len(links)))
		return result
	}

	result = ParseText(parts.PlainText)
	p.logger.Debug("Parsed plain body", zap.Int("listings", len(result.Listings)))
	return result
}

// attachLinks pairs the i-th link with the i-th record. Surplus records keep
// an empty URL.
func attachLinks(listings []core.Listing, links []string) {
	for i := range listings {
		if i >= len(links) {
			return
		}
		listings[i].ResponseURL = links[i]
	}
}
