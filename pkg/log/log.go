package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	JSONFormat = "json"
	TextFormat = "text"
)

// Environment variables consulted by [NewWithCurrentConfig].
const (
	LevelEnvVar  = "SYNCBARRIER_LOG_LEVEL"
	FormatEnvVar = "SYNCBARRIER_LOG_FORMAT"
)

// NewWithCurrentConfig creates a [slog.Logger] by using current configuration.
func NewWithCurrentConfig() *slog.Logger {
	h := CreateHandler(os.Stderr, os.Getenv(LevelEnvVar), os.Getenv(FormatEnvVar))

	return slog.New(h)
}

// CreateHandler creates a [slog.Handler] by strings.
func CreateHandler(w io.Writer, logLevel, logFormat string) slog.Handler {
	level := GetLevel(logLevel)

	switch strings.ToLower(logFormat) {
	case JSONFormat:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case TextFormat:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
}

// GetLevel parses a [slog.Level] from a string, defaulting to info.
func GetLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug", "trace":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// SetLogFormat sets a log/slog format.
func SetLogFormat(logFormat string) {
	switch strings.ToLower(logFormat) {
	case JSONFormat:
		os.Setenv(FormatEnvVar, JSONFormat)
	case TextFormat, "":
		os.Setenv(FormatEnvVar, TextFormat)
	default:
		panic(fmt.Errorf("unknown log format '%s'", logFormat))
	}

	slog.SetDefault(NewWithCurrentConfig())
}

// SetLogLevel parses and sets a log/slog level.
func SetLogLevel(logLevel string) {
	level := GetLevel(logLevel)
	os.Setenv(LevelEnvVar, level.String())
	slog.SetLogLoggerLevel(level)
}
