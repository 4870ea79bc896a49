package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "frontdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FRONTDESK_REDIS_PASSWORD", "s3cret")
	path := writeConfig(t, dir, `
store:
  driver: memory
redis:
  address: localhost:6379
  password: ${FRONTDESK_REDIS_PASSWORD}
clinics:
  - id: north
    name: North Clinic
    timezone: Asia/Dhaka
  - id: south
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Store.MaxRetries)
	assert.Equal(t, "s3cret", cfg.Redis.Password)
	assert.Equal(t, 30, cfg.Attendance.WindowDays)
	assert.Equal(t, "frontdesk", cfg.Redis.KeyPrefix)
	assert.Equal(t, "UTC", cfg.Clinics[1].Timezone)
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, 30*time.Second, cfg.RolloverInterval())
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout())
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown driver", "store:\n  driver: mongo\n", "unknown store.driver"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "database.dsn"},
		{"redis without address", "store:\n  driver: redis\n", "redis.address"},
		{"bridge without redis", "store:\n  driver: memory\nnotify:\n  redis_bridge: true\n", "notify.redis_bridge"},
		{"bad timezone", "store:\n  driver: memory\nclinics:\n  - id: a\n    timezone: Mars/Olympus\n", `clinic "a"`},
		{"duplicate clinic", "store:\n  driver: memory\nclinics:\n  - id: a\n  - id: a\n", "duplicate clinic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "store:\n  driver: memory\nclinics:\n  - id: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []int
	err := Watch(ctx, path, 10*time.Millisecond, zerolog.Nop(), func(c *Config) {
		mu.Lock()
		seen = append(seen, len(c.Clinics))
		mu.Unlock()
	})
	require.NoError(t, err)

	// Bigger file, so the size changes even if the mtime granularity is coarse.
	writeConfig(t, dir, "store:\n  driver: memory\nclinics:\n  - id: a\n  - id: b\n")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2 && seen[1] == 2
	}, time.Second, 10*time.Millisecond)
}

func TestWatch_KeepsConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "store:\n  driver: memory\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	require.NoError(t, Watch(ctx, path, 10*time.Millisecond, zerolog.Nop(), func(*Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))

	writeConfig(t, dir, "store:\n  driver: nonsense-driver\n")
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}
