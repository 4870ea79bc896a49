package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Watch loads path once, hands the result to onUpdate and then polls the
// file every interval, calling onUpdate again after each successful reload.
// A reload that fails validation keeps the previous config in effect.
func Watch(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*Config)) error {
	if path == "" {
		path = DefaultPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger = logger.With().Str("component", "config_watch").Str("path", path).Logger()

	cfg, err := Load(path)
	if err != nil {
		return err
	}
	onUpdate(cfg)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	seen := fileStamp{mod: info.ModTime(), size: info.Size()}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			info, err := os.Stat(path)
			if err != nil {
				logger.Debug().Err(err).Msg("stat failed, keeping current config")
				continue
			}
			stamp := fileStamp{mod: info.ModTime(), size: info.Size()}
			if stamp == seen {
				continue
			}
			next, err := Load(path)
			if err != nil {
				logger.Warn().Err(err).Msg("reload rejected")
				continue
			}
			seen = stamp
			logger.Info().Int("clinics", len(next.Clinics)).Msg("config reloaded")
			onUpdate(next)
		}
	}()

	return nil
}

type fileStamp struct {
	mod  time.Time
	size int64
}
