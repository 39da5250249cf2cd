package core

import "go.uber.org/zap"

// Pipeline decodes, parses and formats one candidate message.
type Pipeline struct {
	decoder   MessageDecoder
	parser    Parser
	formatter Formatter
	logger    *zap.Logger
}

// NewPipeline creates a new pipeline
func NewPipeline(decoder MessageDecoder, parser Parser, formatter Formatter, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		decoder:   decoder,
		parser:    parser,
		formatter: formatter,
		logger:    logger,
	}
}

// Render returns the outgoing digest text for msg.
func (p *Pipeline) Render(msg CandidateMessage) (string, ParseResult) {
	parts := p.decoder.Decode(msg.Raw)
	result := p.parser.Parse(parts)

	p.logger.Debug("Parsed notification",
		zap.Uint32("uid", msg.UID),
		zap.String("subject", parts.Subject),
		zap.Int("listings", len(result.Listings)))

	return p.formatter.Compose(parts, result), result
}
