package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"frontdesk/internal/config"
	"frontdesk/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService_PerformBackup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.CompareAndSwap(ctx, store.Key{ClinicID: "c1", Kind: store.KindToken, ID: "c1"}, 0, []byte("7"))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.Nop()
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: dir}, time.Hour, &logger)

	path, err := svc.PerformBackup(ctx)
	require.NoError(t, err)
	assert.FileExists(t, path)

	restored, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer restored.Close()

	rec, err := restored.Get(ctx, store.Key{ClinicID: "c1", Kind: store.KindToken, ID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "7", string(rec.Value))
}

func TestBackupService_CleanupOldBackups(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, backupPrefix+"old.db")
	fresh := filepath.Join(dir, backupPrefix+"fresh.db")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, unrelated} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(unrelated, past, past))

	logger := zerolog.Nop()
	svc := NewBackupService(Wrap(nil, SQLite, &logger), config.BackupConfig{StoragePath: dir, RetentionDays: 7}, 0, &logger)

	assert.Equal(t, 1, svc.CleanupOldBackups())
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, unrelated)
}

func TestBackupService_DisabledReturnsImmediately(t *testing.T) {
	logger := zerolog.Nop()
	svc := NewBackupService(Wrap(nil, SQLite, &logger), config.BackupConfig{}, 0, &logger)

	done := make(chan struct{})
	go func() {
		svc.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled backup service did not return")
	}
}
