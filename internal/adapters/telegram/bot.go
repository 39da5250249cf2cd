package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mikey/digest-relay/internal/core"
)

// Operations are the relay actions reachable from chat commands
type Operations interface {
	CheckAndDeliver(ctx context.Context, userID string) *core.OperationResult
	ForceDeliver(ctx context.Context, userID string) *core.OperationResult
	Reset(ctx context.Context) *core.OperationResult
	Status() core.StatusReport
}

// updateSource is the part of tgbotapi.BotAPI used for polling
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers chat commands by running relay operations
type Bot struct {
	updates updateSource
	replies core.Deliverer
	ops     Operations
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBot creates a new command bot
func NewBot(updates updateSource, replies core.Deliverer, ops Operations, logger *zap.Logger) *Bot {
	return &Bot{
		updates: updates,
		replies: replies,
		ops:     ops,
		logger:  logger,
	}
}

// Start begins long polling in the background
func (b *Bot) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.updates.GetUpdatesChan(u)

	b.logger.Info("Telegram bot starting")

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for update := range updates {
			msg := update.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}

			b.wg.Add(1)
			go func(command string, chatID int64) {
				defer b.wg.Done()
				b.HandleCommand(ctx, command, chatID)
			}(msg.Command(), msg.Chat.ID)
		}
	}()

	return nil
}

// Stop stops polling and waits for running commands
func (b *Bot) Stop() error {
	b.updates.StopReceivingUpdates()
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
	return nil
}

// HandleCommand runs a single command and replies in the originating chat
func (b *Bot) HandleCommand(ctx context.Context, command string, chatID int64) {
	chat := strconv.FormatInt(chatID, 10)
	logger := b.logger.With(zap.String("command", command), zap.Int64("chat_id", chatID))
	logger.Info("Command received")

	switch command {
	case "start", "help":
		b.reply(ctx, chat, helpText)

	case "status":
		b.reply(ctx, chat, statusText(b.ops.Status()))

	case "now":
		b.reply(ctx, chat, "Проверяю, есть ли новое письмо…")
		res := b.ops.CheckAndDeliver(ctx, chat)
		if text := checkReply(res, b.ops.Status()); text != "" {
			b.reply(ctx, chat, text)
		}

	case "now_force":
		b.reply(ctx, chat, "Ок, пересылаю последнее письмо принудительно…")
		res := b.ops.ForceDeliver(ctx, chat)
		if text := forceReply(res); text != "" {
			b.reply(ctx, chat, text)
		}

	case "reset_state":
		b.reply(ctx, chat, "Сбрасываю state: фиксирую текущее последнее письмо как отправленное…")
		b.reply(ctx, chat, resetReply(b.ops.Reset(ctx)))

	default:
		logger.Debug("Ignoring unknown command")
	}
}

func (b *Bot) reply(ctx context.Context, chat, text string) {
	if err := b.replies.Send(ctx, chat, text, true); err != nil {
		b.logger.Error("Failed to reply", zap.String("chat", chat), zap.Error(err))
	}
}

const helpText = "🤖 <b>Kwork Gmail Checker</b>\n\n" +
	"<b>Команды:</b>\n" +
	"• /help — помощь\n" +
	"• /now — отправить <b>только если есть новое</b> письмо (в канал и тебе)\n" +
	"• /now_force — переслать последнее письмо <b>принудительно</b> (даже если уже было)\n" +
	"• /status — показать состояние (state, папка, query)\n" +
	"• /reset_state — зафиксировать текущее последнее письмо как отправленное\n\n" +
	"<b>Логика:</b>\n" +
	"• watcher шлёт в канал всегда\n" +
	"• watcher шлёт в личку только если SEND_WATCHER_TO_USER=1\n" +
	"• /now шлёт и в канал, и в личку всегда (но без повторов)\n"

func statusText(s core.StatusReport) string {
	lastSeen := "нет"
	if s.Cursor != nil {
		lastSeen = s.Cursor.String()
	}
	sendToUser := "0"
	if s.SendWatcherToUser {
		sendToUser = "1"
	}

	return "📌 <b>Status</b>\n" +
		fmt.Sprintf("STATE_FILE: <code>%s</code>\n", html.EscapeString(s.StateLocation)) +
		fmt.Sprintf("FOLDER: <code>%s</code>\n", html.EscapeString(s.Folder)) +
		fmt.Sprintf("RAW_QUERY: <code>%s</code>\n", html.EscapeString(s.Query)) +
		fmt.Sprintf("MAX_EMAIL_AGE_MINUTES: <b>%d</b>\n", int(s.MaxAge.Minutes())) +
		fmt.Sprintf("last_seen: <b>%s</b>\n", html.EscapeString(lastSeen)) +
		fmt.Sprintf("SEND_WATCHER_TO_USER: <b>%s</b>\n", sendToUser)
}

func checkReply(res *core.OperationResult, status core.StatusReport) string {
	switch res.Outcome {
	case core.OutcomeNoMessages:
		return "Не нашёл писем по запросу.\n" +
			fmt.Sprintf("Папка: <code>%s</code>\n", html.EscapeString(res.Folder)) +
			fmt.Sprintf("RAW_QUERY: <code>%s</code>", html.EscapeString(status.Query))

	case core.OutcomeStale:
		return "Нашёл письмо, но оно слишком старое по MAX_EMAIL_AGE_MINUTES.\n" +
			fmt.Sprintf("MAX_EMAIL_AGE_MINUTES=<b>%d</b>", int(status.MaxAge.Minutes()))

	case core.OutcomeNothingNew:
		last := "нет"
		if res.Cursor != nil {
			last = fmt.Sprintf("<b>%s</b> (uid=%d)", res.Cursor.Timestamp.UTC().Format("2006-01-02 15:04 UTC"), res.Cursor.UID)
		}
		return "⏳ Новых писем пока нет.\n" +
			"Последнее уже отправленное: " + last + "\n" +
			"Если всё равно хочешь переслать — /now_force"

	case core.OutcomeFailed:
		return errorReply("Ошибка", res.Err)
	}

	return softFailureReply(res)
}

func forceReply(res *core.OperationResult) string {
	switch res.Outcome {
	case core.OutcomeNoMessages:
		return "Не нашёл писем по запросу."
	case core.OutcomeFailed:
		return errorReply("Ошибка", res.Err)
	}
	return softFailureReply(res)
}

func resetReply(res *core.OperationResult) string {
	switch res.Outcome {
	case core.OutcomeNoMessages:
		return "Нет писем по запросу — сбрасывать нечего."
	case core.OutcomeFailed:
		return errorReply("Ошибка reset_state", res.Err)
	}
	if text := softFailureReply(res); text != "" {
		return text
	}
	return "✅ Готово. Теперь бот будет ждать только новые письма."
}

func softFailureReply(res *core.OperationResult) string {
	if res.Tier == core.TierSoft && res.Err != nil {
		return "⚠️ Не удалось сохранить state: " + html.EscapeString(res.Err.Error())
	}
	return ""
}

func errorReply(prefix string, err error) string {
	if err == nil {
		return prefix
	}
	return prefix + ": " + html.EscapeString(err.Error())
}
