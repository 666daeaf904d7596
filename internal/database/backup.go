package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"carwash/internal/config"

	"github.com/rs/zerolog"
)

const (
	backupPrefix     = "bookings_"
	backupSuffix     = ".db"
	backupTimeLayout = "20060102_150405.000"
)

// BackupService snapshots the SQLite booking database on an interval and
// prunes snapshots older than the retention window. The newest snapshot is
// always kept.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "backup").Logger()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &BackupService{db: db, config: cfg, logger: l, now: time.Now}
}

func (s *BackupService) Start(ctx context.Context) {
	switch {
	case !s.config.Enabled:
		s.logger.Info().Msg("Backups disabled")
		return
	case s.db.Driver() != DriverSQLite:
		s.logger.Info().Str("driver", s.db.Driver()).Msg("Backups are left to the database server")
		return
	}

	s.logger.Info().Dur("interval", s.config.Interval).Str("dir", s.config.StoragePath).Msg("Backup service started")
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	path, err := s.PerformBackup(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Backup failed")
		return
	}
	removed := s.CleanupOldBackups()
	s.logger.Info().Str("path", path).Int("pruned", removed).Msg("Backup written")
}

// PerformBackup writes a consistent copy and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(s.config.StoragePath, backupPrefix+s.now().Format(backupTimeLayout)+backupSuffix)

	quoted := strings.ReplaceAll(path, "'", "''")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO '"+quoted+"'"); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, copying the file instead")
		if err := copyFile(s.db.Path(), path); err != nil {
			return "", fmt.Errorf("copy database: %w", err)
		}
	}
	return path, nil
}

// copyFile is not a consistent snapshot if the database is written meanwhile.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// backupTime reads the snapshot time from a file name written by PerformBackup.
func backupTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	t, err := time.ParseInLocation(backupTimeLayout, stamp, time.Local)
	return t, err == nil
}

// CleanupOldBackups removes snapshots past RetentionDays and returns how
// many it removed. Files it did not write are left alone.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}
	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Read backup dir")
		return 0
	}

	type snapshot struct {
		name string
		at   time.Time
	}
	var snaps []snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if at, ok := backupTime(e.Name()); ok {
			snaps = append(snaps, snapshot{e.Name(), at})
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].at.After(snaps[j].at) })

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for i, snap := range snaps {
		if i == 0 || !snap.at.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, snap.name)); err != nil {
			s.logger.Warn().Err(err).Str("file", snap.name).Msg("Remove old backup")
			continue
		}
		removed++
	}
	return removed
}
