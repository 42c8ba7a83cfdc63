// Package logging staví slog JSON loggery služeb a volitelně přeposílá
// logy na MQTT topic logs/<služba>.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel převede "debug|info|warn|error" na slog.Level.
// Neznámá hodnota znamená info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New vytvoří JSON logger se službou v atributu "service".
func New(w io.Writer, service, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h).With("service", service)
}
