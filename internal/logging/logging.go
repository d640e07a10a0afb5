package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phsym/console-slog"
	"github.com/samber/oops"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"

	"riseup-backend/internal/config"
)

// Preinit installs a console logger so that config loading can log.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

// Init replaces the default logger with the configured fan-out. The returned
// closer releases the log file, if any.
func Init(cfg *config.Config) (func() error, error) {
	level := ParseLevel(cfg.Log.Level)
	closer := func() error { return nil }

	router := slogmulti.Router().Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))

	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			return nil, oops.In("logging").Wrapf(err, "failed to create log directory")
		}
		file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, oops.In("logging").With("path", cfg.Log.File).Wrapf(err, "failed to open log file")
		}
		router = router.Add(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
		closer = file.Close
	}

	if cfg.Log.TelegramToken != "" && cfg.Log.TelegramChatID != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.TelegramToken,
				Username:  cfg.Log.TelegramChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			forwardToTelegram,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return closer, nil
}

// forwardToTelegram keeps errors and records explicitly tagged telegram=true.
func forwardToTelegram(_ context.Context, r slog.Record) bool {
	tagged := false
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "telegram" {
			tagged = true
			return false
		}
		return true
	})
	return r.Level >= slog.LevelError || tagged
}

func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
