package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"crossdock/internal/config"
	"crossdock/internal/daemon"
	"crossdock/internal/ipc"
	"crossdock/internal/logging"
	"crossdock/internal/offline"
	"crossdock/internal/records"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogPath()},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := records.Open(cfg)
	if err != nil {
		log.Fatalf("open records store: %v", err)
	}

	queue, err := offline.Open(cfg)
	if err != nil {
		store.Close()
		log.Fatalf("open offline queue: %v", err)
	}

	d, err := daemon.New(cfg, store, queue, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, cancel)
	if err != nil {
		log.Fatalf("start IPC server: %v", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("crossdockd shutting down")
}
