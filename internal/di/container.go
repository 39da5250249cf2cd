package di

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/factory"
	"github.com/mikey/digest-relay/internal/format"
	"github.com/mikey/digest-relay/internal/logging"
	"github.com/mikey/digest-relay/internal/parser"
	"github.com/mikey/digest-relay/internal/ports"
	"github.com/mikey/digest-relay/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration; missing credentials fail here, before any
	// mailbox session is opened
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideRelay(container); err != nil {
		return nil, err
	}

	// Register watcher
	if err := container.Provide(func(cfg *config.Config) core.WatcherConfig {
		watcherCfg := cfg.GetWatcher()
		return core.WatcherConfig{
			MaxAge:      cfg.GetDigest().MaxAge,
			IdleTimeout: cfg.GetIMAP().IdleTimeout,
			BackoffMin:  watcherCfg.BackoffMin,
			BackoffMax:  watcherCfg.BackoffMax,
		}
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewDispatcher); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewWatcher); err != nil {
		return nil, err
	}

	// Register command front end
	if err := container.Provide(factory.NewFrontendFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		f *factory.FrontendFactory,
		api *tgbotapi.BotAPI,
		replies core.Deliverer,
		ops *core.Operations,
	) ports.Frontend {
		return f.CreateFrontend(api, replies, ops)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideRelay registers everything shared by the daemon and the CLI:
// state, parsing, mailbox access, delivery and the on-demand operations.
func provideRelay(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewStateFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewPipelineFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewMailboxFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewDeliveryFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.PipelineFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register cursor store and the shared cursor
	if err := container.Provide(func(f *factory.StateFactory) (ports.CursorRepository, error) {
		return f.CreateCursorRepository()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(repo ports.CursorRepository, logger *zap.Logger) *core.CursorService {
		return core.NewCursorService(context.Background(), repo, logger)
	}); err != nil {
		return err
	}

	// Register parse and compose stages
	if err := container.Provide(func(f *factory.PipelineFactory, tp *utils.TextProcessor) *parser.Parser {
		return f.CreateParser(tp)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.PipelineFactory, tp *utils.TextProcessor) *format.Composer {
		return f.CreateComposer(tp)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.PipelineFactory, p *parser.Parser, c *format.Composer) *core.Pipeline {
		return f.CreatePipeline(p, c)
	}); err != nil {
		return err
	}

	// Register mailbox access
	if err := container.Provide(func(f *factory.MailboxFactory) *core.SessionOpener {
		return f.CreateSessionOpener()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.MailboxFactory, p *parser.Parser) *core.Fetcher {
		return f.CreateFetcher(p)
	}); err != nil {
		return err
	}

	// Register delivery
	if err := container.Provide(func(f *factory.DeliveryFactory) (*tgbotapi.BotAPI, error) {
		return f.CreateBotAPI()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory, api *tgbotapi.BotAPI) core.Deliverer {
		return f.CreateDeliverer(api)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory) []ports.DigestMirror {
		return f.CreateMirrors()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory, d core.Deliverer, mirrors []ports.DigestMirror) *core.Publisher {
		return f.CreatePublisher(d, mirrors)
	}); err != nil {
		return err
	}

	// Register on-demand operations
	if err := container.Provide(func(
		cfg *config.Config,
		opener *core.SessionOpener,
		fetcher *core.Fetcher,
		cursor *core.CursorService,
		pipeline *core.Pipeline,
		publisher *core.Publisher,
		repo ports.CursorRepository,
		logger *zap.Logger,
	) *core.Operations {
		return core.NewOperations(opener, fetcher, cursor, pipeline, publisher,
			cfg.GetDigest().MaxAge, repo.Location(), logger)
	}); err != nil {
		return err
	}

	return nil
}
