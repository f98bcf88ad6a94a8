package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"concord/api/internal/advise"
	"concord/api/internal/app"
	"concord/api/internal/config"
	"concord/api/internal/identity"
	"concord/api/internal/mirror"
	"concord/api/internal/store"
	"concord/api/internal/vcs"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var snapshots vcs.Snapshots
	var pinger app.Pinger
	switch {
	case strings.TrimSpace(cfg.RedisURL) != "":
		log.Printf("Using Redis for repository snapshots")
		redisStore, err := store.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		snapshots = redisStore
		pinger = redisStore
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		log.Printf("Using PostgreSQL for repository snapshots")
		pgStore, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer pgStore.Close()
		snapshots = pgStore
		pinger = pgStore
	default:
		log.Printf("Using in-memory repository snapshots")
		snapshots = store.NewMemory()
	}

	engine := vcs.NewEngine(advise.NewHeuristic(), vcs.WithSnapshots(snapshots))
	if restored, err := engine.Restore(ctx); err != nil {
		log.Printf("WARNING: snapshot restore error (continuing with partial state): %v", err)
	} else if restored > 0 {
		log.Printf("Restored %d repositories from snapshots", restored)
	}

	var auditMirror *mirror.Service
	if strings.TrimSpace(cfg.MirrorDir) != "" {
		if err := os.MkdirAll(cfg.MirrorDir, 0o755); err != nil {
			log.Fatalf("failed to create mirror dir: %v", err)
		}
		auditMirror = mirror.New(cfg.MirrorDir)
		log.Printf("Audit mirror enabled at %s", cfg.MirrorDir)
	}

	service := app.New(engine, identity.NewInMemory(), auditMirror)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, pinger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Concord version control API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
