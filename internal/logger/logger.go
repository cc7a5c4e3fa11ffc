package logger

import (
	"io"
	"log/slog"
	"os"

	"pdf-term-stats/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration and
// installs it as the slog default so library packages pick it up.
func InitLogger(cfg *config.Config) {
	Logger = New(os.Stdout, cfg.GinMode == "debug")
	slog.SetDefault(Logger)

	Logger.Debug("Structured logging initialized", "service", cfg.ServiceName)
}

// New builds a JSON logger writing to w.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // Only add source in debug mode
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
