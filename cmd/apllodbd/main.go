package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/daemon"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/session"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/storage"
	"github.com/apllodb/apllodb-sub001/internal/config"
)

func main() {
	cfg := config.DefaultConfig()
	flag.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "UDS path for apllodbd")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding one SQLite file per database")
	flag.DurationVar(&cfg.BusyTimeout, "busy-timeout", cfg.BusyTimeout, "writer-lock wait timeout per statement")
	flag.DurationVar(&cfg.DeadlockTimeout, "deadlock-timeout", cfg.DeadlockTimeout, "unused; BeginTransaction retries are bounded by -busy-timeout")
	flag.DurationVar(&cfg.SessionIdleTimeout, "session-idle-timeout", cfg.SessionIdleTimeout, "unused; idle sessions are not reaped")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fatal(fmt.Errorf("create data dir: %w", err))
	}

	sm := session.NewManager(cfg.DataDir, storage.Options{BusyTimeout: cfg.BusyTimeout})
	defer sm.CloseAll() //nolint:errcheck

	srv := daemon.New(cfg, sm)
	if err := srv.Start(ctx); err != nil && err != context.Canceled {
		fatal(err)
	}
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "apllodbd: %v\n", err)
	os.Exit(1)
}
