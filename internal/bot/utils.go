package bot

import (
	"fmt"
	"strings"

	"carwash/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func statusEmoji(s models.BookingStatus) string {
	switch s {
	case models.StatusPending:
		return "⏳"
	case models.StatusConfirmed:
		return "✅"
	case models.StatusCompleted:
		return "🏁"
	case models.StatusCancelled:
		return "❌"
	default:
		return "❓"
	}
}

func formatBooking(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("   👤 %s\n", escape(b.Name)))
	sb.WriteString(fmt.Sprintf("   🚗 %s\n", escape(b.Service)))
	sb.WriteString(fmt.Sprintf("   📅 %s %s\n", escape(b.Date), escape(b.Time)))
	sb.WriteString(fmt.Sprintf("   📞 %s  ✉️ %s\n", escape(b.Phone), escape(b.Email)))
	if b.Message != "" {
		sb.WriteString(fmt.Sprintf("   💬 %s\n", escape(b.Message)))
	}
	return sb.String()
}

func formatStats(s models.Stats) string {
	return fmt.Sprintf("📊 *Booking stats*\n\nTotal: %d\n⏳ Pending: %d\n✅ Confirmed: %d\n🏁 Completed: %d\n❌ Cancelled: %d",
		s.Total, s.Pending, s.Confirmed, s.Completed, s.Cancelled)
}
