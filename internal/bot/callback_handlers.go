package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"carwash/internal/database"
	"carwash/internal/models"
	"carwash/internal/viewmodel"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	data := cq.Data

	d, err := b.dashboard(ctx, chatID)
	if err != nil {
		_ = b.tgService.AnswerCallback(cq.ID, b.getErrorMessage(err))
		return
	}

	switch {
	case data == cbNoop:
		_ = b.tgService.AnswerCallback(cq.ID, "")
	case strings.HasPrefix(data, cbPage):
		page, err := strconv.Atoi(strings.TrimPrefix(data, cbPage))
		if err != nil || !d.ChangePage(page) {
			_ = b.tgService.AnswerCallback(cq.ID, "Page not available")
			return
		}
		_ = b.tgService.AnswerCallback(cq.ID, "")
		b.editDashboard(chatID, cq.Message.MessageID, d)
	case strings.HasPrefix(data, cbStatus):
		b.handleStatusChange(ctx, cq, d)
	default:
		b.logger.Warn().Str("data", data).Msg("Unknown callback")
		_ = b.tgService.AnswerCallback(cq.ID, "Unknown action")
	}
}

// handleStatusChange applies "st:<id>:<status>" if it is still a legal move
// from the cached status.
func (b *Bot) handleStatusChange(ctx context.Context, cq *tgbotapi.CallbackQuery, d *viewmodel.Dashboard) {
	chatID := cq.Message.Chat.ID
	rest := strings.TrimPrefix(cq.Data, cbStatus)
	sep := strings.LastIndex(rest, ":")
	if sep <= 0 {
		_ = b.tgService.AnswerCallback(cq.ID, "Unknown action")
		return
	}
	id, next := rest[:sep], models.BookingStatus(rest[sep+1:])

	current, ok := d.Get(id)
	if !ok || !models.CanTransition(current.Status, next) {
		_ = b.tgService.AnswerCallback(cq.ID, "That change is no longer available")
		b.editDashboard(chatID, cq.Message.MessageID, d)
		return
	}

	if err := b.bookingService.UpdateStatus(ctx, id, next); err != nil {
		b.logger.Error().Err(err).Str("booking_id", id).Str("status", string(next)).Msg("Failed to update status")
		_ = b.tgService.AnswerCallback(cq.ID, b.getErrorMessage(err))
		if errors.Is(err, database.ErrNotFound) {
			b.eachDashboard(func(other *viewmodel.Dashboard) { other.Remove(id) })
			b.editDashboard(chatID, cq.Message.MessageID, d)
		}
		return
	}

	b.eachDashboard(func(other *viewmodel.Dashboard) { other.ApplyStatus(id, next) })
	_ = b.tgService.AnswerCallback(cq.ID, "Status updated")
	b.logger.Info().Str("booking_id", id).Str("status", string(next)).Int64("chat_id", chatID).Msg("Booking status changed")
	b.editDashboard(chatID, cq.Message.MessageID, d)
}

func (b *Bot) editDashboard(chatID int64, messageID int, d *viewmodel.Dashboard) {
	text, keyboard := renderDashboard(d)
	if _, err := b.tgService.EditMessage(chatID, messageID, text, &keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to edit dashboard")
	}
}
