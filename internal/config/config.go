// Package config provides configuration helpers for go-pathsense commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Default server configuration.
const (
	DefaultAddr   = ":5000"
	DefaultDBPath = "pathsense.db"
	DefaultLevel  = "info"
)

// Addr returns the listen address from PATHSENSE_ADDR or the default.
func Addr() string {
	if addr := os.Getenv("PATHSENSE_ADDR"); addr != "" {
		return addr
	}
	return DefaultAddr
}

// DBPath returns the sqlite database path from PATHSENSE_DB or the default.
// An empty PATHSENSE_DB with PATHSENSE_NO_DB=1 disables persistence.
func DBPath() string {
	if path := os.Getenv("PATHSENSE_DB"); path != "" {
		return path
	}
	if os.Getenv("PATHSENSE_NO_DB") == "1" {
		return ""
	}
	return DefaultDBPath
}

// LogLevel returns the log level from PATHSENSE_LOG_LEVEL or the default.
func LogLevel() string {
	if level := os.Getenv("PATHSENSE_LOG_LEVEL"); level != "" {
		return level
	}
	return DefaultLevel
}

// DurationEnv returns a duration parsed from the named env var.
// Falls back to def when unset or unparseable.
func DurationEnv(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// IntEnv returns an int parsed from the named env var, or def.
func IntEnv(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
