// Package config obsahuje pomocné funkce pro čtení konfigurace z ENV
// (12-Factor App). Každá služba si z nich skládá vlastní Config.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv vrátí hodnotu proměnné, nebo fallback, pokud chybí či je prázdná.
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// Duration čte Go duration ("30s", "5m"). Neplatná hodnota = fallback.
func Duration(key string, fallback time.Duration) time.Duration {
	val := GetEnv(key, "")
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func Int(key string, fallback int) int {
	val := GetEnv(key, "")
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

// Bool přijímá cokoli, co umí strconv.ParseBool (1, true, false...).
func Bool(key string, fallback bool) bool {
	val := GetEnv(key, "")
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
