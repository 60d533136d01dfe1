package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetString retrieves an environment variable or returns a fallback when unset.
// Values are trimmed; a variable set to whitespace counts as unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	value := GetString(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer env value", "key", key, "error", err)
		return fallback
	}
	return parsed
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	value := GetString(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("invalid boolean env value", "key", key, "error", err)
		return fallback
	}
	return parsed
}

// GetSeconds reads an integer number of seconds and returns it as a duration.
func GetSeconds(key string, fallback time.Duration) time.Duration {
	secs := GetInt(key, -1)
	if secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// GetList splits a comma separated variable, dropping empty items.
func GetList(key string) []string {
	value := GetString(key, "")
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
