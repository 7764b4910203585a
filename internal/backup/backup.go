// Package backup takes periodic snapshots of the SQLite store.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	filePrefix = "backup_"
	fileSuffix = ".db"
)

// Snapshotter writes a consistent copy of the database to dest.
type Snapshotter interface {
	Snapshot(ctx context.Context, dest string) error
}

// Config controls the backup loop.
type Config struct {
	Enabled   bool
	Dir       string
	Interval  time.Duration
	Retention time.Duration
}

type Service struct {
	db     Snapshotter
	config Config
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(db Snapshotter, cfg Config, logger zerolog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Service{
		db:     db,
		config: cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "backup").Logger(),
	}
}

// Start runs a backup immediately and then on every interval until ctx is done.
func (s *Service) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	s.logger.Info().Dur("interval", s.config.Interval).Str("dir", s.config.Dir).Msg("Backup service started")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PerformBackup(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

// PerformBackup snapshots the database into a timestamped file and returns its path.
func (s *Service) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	name := filePrefix + s.now().Format("20060102_150405") + fileSuffix
	path := filepath.Join(s.config.Dir, name)

	s.logger.Info().Str("path", path).Msg("Performing database backup")
	if err := s.db.Snapshot(ctx, path); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	s.logger.Info().Str("path", path).Msg("Backup completed successfully")
	return path, nil
}

// CleanupOldBackups deletes backup files older than the retention period.
// Other files in the directory are left alone.
func (s *Service) CleanupOldBackups() int {
	if s.config.Retention <= 0 {
		return 0
	}

	files, err := os.ReadDir(s.config.Dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return 0
	}

	cutoff := s.now().Add(-s.config.Retention)
	removed := 0
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", name).Msg("Deleting old backup")
			if err := os.Remove(filepath.Join(s.config.Dir, name)); err != nil {
				s.logger.Warn().Err(err).Str("file", name).Msg("Failed to delete old backup")
				continue
			}
			removed++
		}
	}
	return removed
}
