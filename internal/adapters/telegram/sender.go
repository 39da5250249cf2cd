package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var numericChatID = regexp.MustCompile(`^-?\d+$`)

// messageSender is the part of tgbotapi.BotAPI used for delivery
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers HTML messages to Telegram chats and channels
type Sender struct {
	api    messageSender
	logger *zap.Logger
}

// NewSender creates a new Telegram sender
func NewSender(api messageSender, logger *zap.Logger) *Sender {
	return &Sender{
		api:    api,
		logger: logger,
	}
}

// Send delivers text to a numeric chat id or an @channel username
func (s *Sender) Send(ctx context.Context, destination, text string, disablePreview bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := newMessage(destination, text)
	if err != nil {
		return err
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = disablePreview

	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %s: %w", destination, err)
	}

	s.logger.Debug("Message delivered",
		zap.String("destination", destination),
		zap.Int("length", len([]rune(text))))
	return nil
}

func newMessage(destination, text string) (tgbotapi.MessageConfig, error) {
	dest := strings.TrimSpace(destination)
	if dest == "" {
		return tgbotapi.MessageConfig{}, fmt.Errorf("empty telegram destination")
	}

	if numericChatID.MatchString(dest) {
		id, err := strconv.ParseInt(dest, 10, 64)
		if err != nil {
			return tgbotapi.MessageConfig{}, fmt.Errorf("invalid chat id %q: %w", dest, err)
		}
		return tgbotapi.NewMessage(id, text), nil
	}

	return tgbotapi.NewMessageToChannel(dest, text), nil
}
