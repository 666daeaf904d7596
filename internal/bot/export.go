package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"carwash/internal/export"
	"carwash/internal/viewmodel"
)

// handleExport sends every booking matching the chat's filters, in the
// chat's sort order, as a document. Pagination is ignored.
func (b *Bot) handleExport(ctx context.Context, chatID int64, args string) {
	format, err := export.ParseFormat(strings.ToLower(args))
	if err != nil {
		b.notify(chatID, SeverityWarning, "Use /export csv, /export xlsx or /export pdf.")
		return
	}

	d, err := b.dashboard(ctx, chatID)
	if err != nil {
		b.notify(chatID, SeverityError, b.getErrorMessage(err))
		return
	}

	state := d.State()
	rows := viewmodel.Filter(d.Snapshot(), state)
	viewmodel.Sort(rows, state.SortColumn, state.SortDirection)

	now := b.now()
	data, err := export.Render(format, rows, now)
	if err != nil {
		b.logger.Error().Err(err).Str("format", string(format)).Msg("Export failed")
		b.notify(chatID, SeverityError, "Export failed.")
		return
	}

	name := export.FileName(format, now)
	if dir := b.config.Exports.Path; dir != "" {
		if err := b.archiveExport(dir, name, data); err != nil {
			b.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to archive export")
		}
	}

	caption := fmt.Sprintf("%d bookings", len(rows))
	if _, err := b.tgService.SendDocument(chatID, name, data, caption); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send export")
		return
	}
	if b.metrics != nil {
		b.metrics.ExportsTotal.WithLabelValues(string(format)).Inc()
	}
}

func (b *Bot) archiveExport(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating export directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	b.logger.Info().Str("file_path", path).Msg("Export archived")
	return nil
}
