// Package logging nastavuje slog logger služeb (JSON na stdout)
// a volitelně zrcadlí logy do MQTT topicu logs/<služba>.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel převede LOG_LEVEL na slog.Level. Neznámá hodnota = info.
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

// New vytvoří JSON logger zapisující do w.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
