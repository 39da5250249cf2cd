package factory

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mikey/digest-relay/internal/adapters/telegram"
	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/ports"
	"go.uber.org/zap"
)

// FrontendFactory creates the command front end
type FrontendFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(cfg *config.Config, logger *zap.Logger) *FrontendFactory {
	return &FrontendFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateFrontend creates the Telegram command bot
func (f *FrontendFactory) CreateFrontend(api *tgbotapi.BotAPI, replies core.Deliverer, ops *core.Operations) ports.Frontend {
	return telegram.NewBot(api, replies, ops, f.logger.Named("bot"))
}
