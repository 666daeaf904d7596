package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// updateKind names the part of an update the bot acts on, or "" to ignore it.
func updateKind(update tgbotapi.Update) (kind string, chatID int64) {
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return "callback", update.CallbackQuery.Message.Chat.ID
	case update.Message != nil:
		return "message", update.Message.Chat.ID
	}
	return "", 0
}

// guard runs handle for admin chats only, turning a panic into a logged
// error so one bad update cannot stop the polling loop.
func (b *Bot) guard(ctx context.Context, update tgbotapi.Update, handle func(context.Context)) {
	kind, chatID := updateKind(update)
	if kind == "" {
		return
	}

	l := zerolog.Ctx(ctx).With().Str("update", kind).Int64("chat_id", chatID).Logger()
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			l.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()

	if !b.isAdmin(chatID) {
		l.Warn().Msg("update from non-admin chat")
		if kind == "callback" {
			_ = b.tgService.AnswerCallback(update.CallbackQuery.ID, "Not allowed")
			return
		}
		b.notify(chatID, SeverityWarning, "This bot is for car wash staff only.")
		return
	}

	b.countUpdate(kind)
	handle(l.WithContext(ctx))
}
