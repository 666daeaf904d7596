package bot

import (
	"fmt"
	"strconv"
	"strings"

	"carwash/internal/models"
	"carwash/internal/viewmodel"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes.
const (
	cbPage   = "page:"
	cbStatus = "st:"
	cbNoop   = "noop"
)

// renderDashboard builds the text and keyboard of the chat's current page.
func renderDashboard(d *viewmodel.Dashboard) (string, tgbotapi.InlineKeyboardMarkup) {
	state := d.State()
	page := d.Page()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *Bookings* (%d of %d)\n", page.TotalItems, d.Len()))
	sb.WriteString(describeState(state))
	sb.WriteString("\n")

	if len(page.Rows) == 0 {
		sb.WriteString("No bookings match the current filters.\n")
	}

	keyboard := [][]tgbotapi.InlineKeyboardButton{}
	for _, booking := range page.Rows {
		sb.WriteString(fmt.Sprintf("%s *%s* %s\n", statusEmoji(booking.Status), escape(booking.ID), escape(string(booking.Status))))
		sb.WriteString(formatBooking(booking))
		sb.WriteString("\n")

		if row := statusButtons(booking); len(row) > 0 {
			keyboard = append(keyboard, row)
		}
	}

	if page.TotalPages > 0 {
		sb.WriteString(fmt.Sprintf("Page %d of %d", page.CurrentPage, page.TotalPages))
	}
	if page.TotalPages > 1 {
		keyboard = append(keyboard, paginationRows(page.CurrentPage, page.TotalPages)...)
	}

	return sb.String(), tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

func describeState(vs viewmodel.ViewState) string {
	parts := []string{"status: " + vs.StatusFilter}
	if vs.SearchTerm != "" {
		parts = append(parts, fmt.Sprintf("search: %q", vs.SearchTerm))
	}
	if vs.DateFilter != "" {
		date := vs.DateFilter
		if vs.SearchTerm != "" {
			date += " (ignored while searching)"
		}
		parts = append(parts, "date: "+date)
	}
	if vs.SortColumn != "" {
		parts = append(parts, fmt.Sprintf("sort: %s %s", vs.SortColumn, vs.SortDirection))
	} else {
		parts = append(parts, "sort: newest first")
	}
	return "_" + escape(strings.Join(parts, " · ")) + "_\n"
}

// statusButtons offers only the legal next statuses of a booking.
func statusButtons(b *models.Booking) []tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton
	for _, next := range b.Status.NextStatuses() {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s %s → %s", statusEmoji(next), b.ID, next),
			cbStatus+b.ID+":"+string(next),
		))
	}
	return row
}

// paginationRows lays the page buttons on one row and prev/next on another.
func paginationRows(current, totalPages int) [][]tgbotapi.InlineKeyboardButton {
	var pages, nav []tgbotapi.InlineKeyboardButton
	for _, c := range viewmodel.PaginationControls(current, totalPages) {
		switch c.Kind {
		case viewmodel.ControlPrev:
			nav = append(nav, navButton("◀️ Prev", c))
		case viewmodel.ControlNext:
			nav = append(nav, navButton("Next ▶️", c))
		case viewmodel.ControlEllipsis:
			pages = append(pages, tgbotapi.NewInlineKeyboardButtonData("…", cbNoop))
		case viewmodel.ControlPage:
			label := strconv.Itoa(c.Page)
			if c.Active {
				label = "· " + label + " ·"
			}
			pages = append(pages, tgbotapi.NewInlineKeyboardButtonData(label, cbPage+strconv.Itoa(c.Page)))
		}
	}
	return [][]tgbotapi.InlineKeyboardButton{pages, nav}
}

func navButton(label string, c viewmodel.PageControl) tgbotapi.InlineKeyboardButton {
	if c.Disabled {
		return tgbotapi.NewInlineKeyboardButtonData("·", cbNoop)
	}
	return tgbotapi.NewInlineKeyboardButtonData(label, cbPage+strconv.Itoa(c.Page))
}
