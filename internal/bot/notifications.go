package bot

// Severity selects the prefix of a dashboard notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) Prefix() string {
	switch s {
	case SeveritySuccess:
		return "✅"
	case SeverityWarning:
		return "⚠️"
	case SeverityError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// notify sends a Markdown message prefixed by the severity emoji.
func (b *Bot) notify(chatID int64, sev Severity, text string) {
	if _, err := b.tgService.SendMarkdown(chatID, sev.Prefix()+" "+text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Str("severity", string(sev)).Msg("Failed to send notification")
	}
}
