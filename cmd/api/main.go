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

	"atelier/api/internal/app"
	"atelier/api/internal/backup"
	"atelier/api/internal/cache"
	"atelier/api/internal/config"
	"atelier/api/internal/export"
	"atelier/api/internal/notion"
	"atelier/api/internal/search"
	"atelier/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	opts := app.Options{Export: export.NewService()}

	// The API stays up without a database so the frontend can show its
	// setup screen; every data route then reports not configured.
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}

		opts.Store = store.NewPostgresStore(db)

		pgfts := search.NewPgFTS(db)
		var meiliClient *search.Meili
		if strings.TrimSpace(cfg.MeiliURL) != "" {
			meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
			defer meiliClient.Close()
		}
		opts.Search = search.NewService(meiliClient, pgfts)
	} else {
		log.Printf("DATABASE_URL not set, running without persistence")
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		syncCache, err := cache.New(cfg.RedisURL, cfg.SyncLockTTL, cfg.FullDataTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer syncCache.Close()
		opts.Cache = syncCache
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		backupService, err := backup.New(ctx, backup.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		opts.Backup = backupService
	}

	if strings.TrimSpace(cfg.NotionToken) != "" {
		client := notion.NewClient(notion.ClientOptions{Token: cfg.NotionToken})
		opts.Notion = notion.NewService(client, cfg.NotionProjectsDB, cfg.NotionTasksDB)
	}

	service := app.New(cfg, opts)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Atelier API listening on %s", cfg.Addr)
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
