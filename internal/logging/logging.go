package logging

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger builds a slog logger writing text or JSON records to w
func Logger(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel parses DEBUG, INFO, WARN or ERROR, case-insensitively.
// Unknown names yield INFO and false.
func ParseLevel(name string) (slog.Level, bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, false
	}
	return level, true
}

// Output returns console, or console tee'd with a rotating file when path is
// set. The returned closer releases the file.
func Output(console io.Writer, path string, maxSizeMB, maxBackups int) (io.Writer, io.Closer) {
	if path == "" {
		return console, io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	return io.MultiWriter(console, file), file
}
