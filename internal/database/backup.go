package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"courtbook/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const backupPrefix = "backup_"

// Snapshotter copies a consistent image of the ledger to dst.
type Snapshotter interface {
	BackupTo(ctx context.Context, dst string) error
}

type BackupService struct {
	source Snapshotter
	ext    string
	config config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(source Snapshotter, ext string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &BackupService{
		source: source,
		ext:    ext,
		config: cfg,
		logger: loggerOrNop(logger),
		now:    time.Now,
	}
}

// Start runs backups on the configured cron schedule until ctx is done.
func (s *BackupService) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(s.config.Schedule, func() {
		if _, err := s.PerformBackup(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled backup failed")
			return
		}
		s.CleanupOldBackups()
	})
	if err != nil {
		return fmt.Errorf("parse backup schedule %q: %w", s.config.Schedule, err)
	}

	s.logger.Info().Str("schedule", s.config.Schedule).Str("path", s.config.Path).Msg("Backup service started")
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// PerformBackup writes one snapshot and returns its path.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.Path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := fmt.Sprintf("%s%s%s", backupPrefix, s.now().Format("20060102_150405"), s.ext)
	backupPath := filepath.Join(s.config.Path, name)

	s.logger.Info().Str("path", backupPath).Msg("Performing ledger backup")
	if err := s.source.BackupTo(ctx, backupPath); err != nil {
		return "", fmt.Errorf("backup to %s: %w", backupPath, err)
	}

	s.logger.Info().Msg("Backup completed successfully")
	return backupPath, nil
}

// CleanupOldBackups removes backups older than the retention period.
func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.config.Path)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)

	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), backupPrefix) {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("Deleting old backup")
			if err := os.Remove(filepath.Join(s.config.Path, file.Name())); err != nil {
				s.logger.Warn().Err(err).Str("file", file.Name()).Msg("Failed to delete old backup")
			}
		}
	}
}

// BackupTo copies the JSON file while holding the write lock.
func (s *FileStore) BackupTo(_ context.Context, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := os.Open(s.path)
	if os.IsNotExist(err) {
		data, encErr := encodeDocument(nil)
		if encErr != nil {
			return encErr
		}
		return os.WriteFile(dst, data, 0o644)
	}
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// BackupTo writes a consistent copy of the database with VACUUM INTO.
func (s *SQLiteStore) BackupTo(ctx context.Context, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dst)
	return err
}
