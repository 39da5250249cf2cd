package factory

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mikey/digest-relay/internal/adapters/smtp"
	"github.com/mikey/digest-relay/internal/adapters/telegram"
	"github.com/mikey/digest-relay/internal/config"
	"github.com/mikey/digest-relay/internal/core"
	"github.com/mikey/digest-relay/internal/ports"
	"go.uber.org/zap"
)

// DeliveryFactory creates the chat transport and digest destinations
type DeliveryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDeliveryFactory creates a new delivery factory
func NewDeliveryFactory(cfg *config.Config, logger *zap.Logger) *DeliveryFactory {
	return &DeliveryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateBotAPI authenticates against the Telegram Bot API
func (f *DeliveryFactory) CreateBotAPI() (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(f.cfg.GetTelegram().BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	f.logger.Info("Authorized Telegram bot", zap.String("username", api.Self.UserName))
	return api, nil
}

// CreateDeliverer wraps the bot API as a core.Deliverer
func (f *DeliveryFactory) CreateDeliverer(api *tgbotapi.BotAPI) core.Deliverer {
	return telegram.NewSender(api, f.logger.Named("telegram"))
}

// CreateMirrors returns the configured best-effort digest copies
func (f *DeliveryFactory) CreateMirrors() []ports.DigestMirror {
	mirrorCfg := f.cfg.GetSMTPMirror()
	if !mirrorCfg.Enabled {
		return nil
	}
	if len(mirrorCfg.To) == 0 {
		f.logger.Warn("SMTP mirror enabled without recipients, ignoring")
		return nil
	}

	f.logger.Info("Mirroring digests by e-mail",
		zap.String("host", mirrorCfg.Host),
		zap.Strings("to", mirrorCfg.To))

	return []ports.DigestMirror{smtp.NewMirror(smtp.Options{
		Host:     mirrorCfg.Host,
		Port:     mirrorCfg.Port,
		Username: mirrorCfg.Username,
		Password: mirrorCfg.Password,
		From:     mirrorCfg.From,
		To:       mirrorCfg.To,
		StartTLS: mirrorCfg.StartTLS,
		Subject:  f.cfg.GetDigest().Title,
	}, f.logger.Named("smtp"))}
}

// CreatePublisher builds the digest publisher for the configured targets
func (f *DeliveryFactory) CreatePublisher(deliverer core.Deliverer, mirrors []ports.DigestMirror) *core.Publisher {
	tg := f.cfg.GetTelegram()

	coreMirrors := make([]core.Mirror, 0, len(mirrors))
	for _, m := range mirrors {
		coreMirrors = append(coreMirrors, core.Mirror{Deliverer: m, Destination: m.Destination()})
	}

	return core.NewPublisher(deliverer, core.Targets{
		ChannelID:         tg.ChannelChatID,
		UserID:            tg.UserChatID,
		SendWatcherToUser: f.cfg.GetDigest().SendWatcherToUser,
		DisablePreview:    tg.DisableWebPreview,
	}, coreMirrors, f.logger)
}
