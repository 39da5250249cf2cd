package factory

import (
	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/format"
	"github.com/mikey/digest-relay/internal/parser"
	"github.com/mikey/digest-relay/internal/utils"
	"go.uber.org/zap"
)

// PipelineFactory creates the parse and compose stages
type PipelineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewPipelineFactory creates a new pipeline factory
func NewPipelineFactory(cfg *config.Config, logger *zap.Logger) *PipelineFactory {
	return &PipelineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates the rune-aware text helper shared by both stages
func (f *PipelineFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger.Named("text"))
}

// CreateParser creates the digest parser
func (f *PipelineFactory) CreateParser(tp *utils.TextProcessor) *parser.Parser {
	digest := f.cfg.GetDigest()
	opts := parser.DefaultOptions()
	if digest.SiteHost != "" {
		opts.SiteHost = digest.SiteHost
	}
	if digest.LinkParam != "" {
		opts.LinkParam = digest.LinkParam
	}
	return parser.New(opts, tp, f.logger.Named("parser"))
}

// CreateComposer creates the digest composer
func (f *PipelineFactory) CreateComposer(tp *utils.TextProcessor) *format.Composer {
	digest := f.cfg.GetDigest()
	return format.NewComposer(format.Options{
		Title:    digest.Title,
		MaxItems: digest.MaxItems,
	}, tp, f.logger)
}

// CreatePipeline wires decode, parse and compose
func (f *PipelineFactory) CreatePipeline(p *parser.Parser, c *format.Composer) *core.Pipeline {
	return core.NewPipeline(p, p, c, f.logger)
}
