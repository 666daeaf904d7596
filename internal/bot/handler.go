package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"carwash/internal/models"
	"carwash/internal/viewmodel"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `🚿 *Car wash dashboard*

/bookings - reload and show bookings
/filter <all|pending|confirmed|completed|cancelled>
/search <text> - search id, name, email, phone, service (empty clears)
/date <YYYY-MM-DD|clear> - only bookings for one day
/sort <column> - sort, repeat to flip direction
/page <n> - jump to a page
/stats - counts per status
/export <csv|xlsx|pdf> - download the filtered list`

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.notify(msg.Chat.ID, SeverityInfo, "Use /help to see the available commands.")
		return
	}

	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	if b.metrics != nil {
		b.metrics.CommandsProcessed.WithLabelValues(command).Inc()
	}
	zerolog.Ctx(ctx).Debug().Str("command", command).Int64("chat_id", msg.Chat.ID).Msg("command received")

	switch command {
	case "start", "help":
		_, _ = b.tgService.SendMarkdown(msg.Chat.ID, helpText)
	case "bookings":
		b.handleBookings(ctx, msg.Chat.ID)
	case "filter":
		b.handleFilter(ctx, msg.Chat.ID, args)
	case "search":
		b.withDashboard(ctx, msg.Chat.ID, func(d *viewmodel.Dashboard) bool {
			d.SetSearch(args)
			return true
		})
	case "date":
		b.handleDate(ctx, msg.Chat.ID, args)
	case "sort":
		b.handleSort(ctx, msg.Chat.ID, args)
	case "page":
		b.handlePage(ctx, msg.Chat.ID, args)
	case "stats":
		b.handleStats(ctx, msg.Chat.ID)
	case "export":
		b.handleExport(ctx, msg.Chat.ID, args)
	default:
		b.notify(msg.Chat.ID, SeverityWarning, "Unknown command. Use /help.")
	}
}

// withDashboard applies fn to the chat's dashboard and shows the result
// when fn reports a change.
func (b *Bot) withDashboard(ctx context.Context, chatID int64, fn func(d *viewmodel.Dashboard) bool) {
	d, err := b.dashboard(ctx, chatID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to load bookings")
		b.notify(chatID, SeverityError, b.getErrorMessage(err))
		return
	}
	if fn(d) {
		b.sendDashboard(chatID, d)
	}
}

func (b *Bot) sendDashboard(chatID int64, d *viewmodel.Dashboard) {
	text, keyboard := renderDashboard(d)
	if _, err := b.tgService.SendWithInlineKeyboard(chatID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send dashboard")
	}
}

func (b *Bot) handleBookings(ctx context.Context, chatID int64) {
	b.withDashboard(ctx, chatID, func(d *viewmodel.Dashboard) bool {
		if err := b.reload(ctx, d); err != nil {
			b.logger.Warn().Err(err).Msg("Reload failed, showing cached bookings")
			b.notify(chatID, SeverityWarning, b.getErrorMessage(err))
		}
		return true
	})
}

func (b *Bot) handleFilter(ctx context.Context, chatID int64, args string) {
	status := strings.ToLower(args)
	if status == "" {
		status = models.StatusAll
	}
	if status != models.StatusAll && !models.BookingStatus(status).Valid() {
		b.notify(chatID, SeverityWarning, "Unknown status. Use all, pending, confirmed, completed or cancelled.")
		return
	}
	b.withDashboard(ctx, chatID, func(d *viewmodel.Dashboard) bool {
		d.SetStatusFilter(status)
		return true
	})
}

func (b *Bot) handleDate(ctx context.Context, chatID int64, args string) {
	date := args
	if strings.EqualFold(date, "clear") {
		date = ""
	}
	if date != "" {
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			b.notify(chatID, SeverityWarning, "Use a date like 2026-03-15, or /date clear.")
			return
		}
	}
	b.withDashboard(ctx, chatID, func(d *viewmodel.Dashboard) bool {
		d.SetDate(date)
		return true
	})
}

func (b *Bot) handleSort(ctx context.Context, chatID int64, args string) {
	b.withDashboard(ctx, chatID, func(d *viewmodel.Dashboard) bool {
		if d.SortBy(args) {
			return true
		}
		b.notify(chatID, SeverityWarning,
			"Sort by one of: id, name, email, phone, service, date, time, status, message, createdAt.")
		return false
	})
}

func (b *Bot) handlePage(ctx context.Context, chatID int64, args string) {
	page, err := strconv.Atoi(args)
	if err != nil {
		b.notify(chatID, SeverityWarning, "Use /page followed by a number.")
		return
	}
	b.withDashboard(ctx, chatID, func(d *viewmodel.Dashboard) bool {
		if d.ChangePage(page) {
			return true
		}
		b.notify(chatID, SeverityWarning, fmt.Sprintf("Page %d does not exist.", page))
		return false
	})
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	stats, err := b.bookingService.Stats(ctx)
	if err != nil {
		b.notify(chatID, SeverityError, b.getErrorMessage(err))
		return
	}
	_, _ = b.tgService.SendMarkdown(chatID, formatStats(stats))
}
