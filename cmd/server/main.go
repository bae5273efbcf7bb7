package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nicktill/energyview/pkg/config"
	"github.com/nicktill/energyview/pkg/server"
)

func main() {
	log.Println("🚀 Starting energyview server...")

	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("👋 energyview server exited cleanly")
}

func run(ctx context.Context, cfg config.Config) error {
	if cfg.CacheDisabled {
		log.Println("⚙️  Configuration: table cache disabled")
	} else {
		log.Printf("⚙️  Configuration: cache %s (ttl %v, memory limit %d MB)", cfg.CacheDir, cfg.CacheTTL, cfg.MaxCacheMB)
	}
	log.Printf("⚙️  Required groups: %v", cfg.RequiredGroups)

	srv, err := server.New(cfg, server.WithLogger(log.New(os.Stderr, "loader: ", log.LstdFlags)))
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.ListenAndServe(ctx)
}
