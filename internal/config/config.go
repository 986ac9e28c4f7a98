// Package config holds apllodbd's runtime configuration: where database
// files live and the timeouts governing the storage engine's single-writer
// lock.
package config

import (
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	// DataDir holds one file per apllodb Database.
	DataDir string
	// SocketPath is the listen address for apllodbd's client protocol.
	SocketPath string
	// BusyTimeout bounds how long a single statement waits for the
	// file's writer lock.
	BusyTimeout time.Duration
	// DeadlockTimeout is settable but not read anywhere: BeginTransaction's
	// retry before DeadlockDetected is bounded by BusyTimeout.
	DeadlockTimeout time.Duration
	// SessionIdleTimeout is settable but not read anywhere: idle sessions
	// are not closed.
	SessionIdleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DataDir:            defaultDataDir(),
		SocketPath:         defaultSocketPath(),
		BusyTimeout:        1 * time.Second,
		DeadlockTimeout:    5 * time.Second,
		SessionIdleTimeout: 30 * time.Minute,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "apllodb-data"
	}
	return filepath.Join(home, ".local", "state", "apllodb", "data")
}

func defaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir != "" {
		return filepath.Join(runtimeDir, "apllodb", "apllodbd.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".apllodbd.sock"
	}
	return filepath.Join(home, ".local", "state", "apllodb", "apllodbd.sock")
}
