package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"courtbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService_PerformBackup(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "slots.json"), testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sampleDocument()))

	cfg := config.BackupConfig{Enabled: true, Schedule: "@daily", Path: filepath.Join(dir, "backups")}
	svc := NewBackupService(store, "json", cfg, testLogger())
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC) }

	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Path, "backup_20240304_020000.json"), path)

	original, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	copied, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, copied)
}

func TestBackupService_SQLite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(dir, "ledger.db"), testLogger())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Save(context.Background(), sampleDocument()))

	cfg := config.BackupConfig{Enabled: true, Path: filepath.Join(dir, "backups")}
	svc := NewBackupService(store, ".db", cfg, testLogger())

	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)

	restored, err := NewSQLiteStore(path, testLogger())
	require.NoError(t, err)
	defer restored.Close()

	doc, err := restored.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Slots, 2)
}

func TestBackupService_CleanupOldBackups(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	old := filepath.Join(dir, "backup_20240101_000000.json")
	fresh := filepath.Join(dir, "backup_20240319_000000.json")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, unrelated} {
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0o644))
	}
	require.NoError(t, os.Chtimes(old, now.AddDate(0, 0, -30), now.AddDate(0, 0, -30)))
	require.NoError(t, os.Chtimes(fresh, now.AddDate(0, 0, -1), now.AddDate(0, 0, -1)))
	require.NoError(t, os.Chtimes(unrelated, now.AddDate(0, 0, -30), now.AddDate(0, 0, -30)))

	svc := NewBackupService(nil, ".json", config.BackupConfig{Path: dir, RetentionDays: 7}, testLogger())
	svc.now = func() time.Time { return now }
	svc.CleanupOldBackups()

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, unrelated)
}

func TestBackupService_DisabledDoesNothing(t *testing.T) {
	svc := NewBackupService(nil, ".json", config.BackupConfig{Enabled: false}, testLogger())
	assert.NoError(t, svc.Start(context.Background()))
}

func TestBackupService_InvalidSchedule(t *testing.T) {
	svc := NewBackupService(nil, ".json", config.BackupConfig{Enabled: true, Schedule: "not a schedule"}, testLogger())
	assert.Error(t, svc.Start(context.Background()))
}
