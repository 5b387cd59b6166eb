package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/ride-share/internal/auth"
	"github.com/example/ride-share/internal/cache"
	"github.com/example/ride-share/internal/config"
	httpapi "github.com/example/ride-share/internal/http"
	"github.com/example/ride-share/internal/ingest"
	"github.com/example/ride-share/internal/lifecycle"
	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, "api")

	var store storage.Store
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			runMigrations(cfg.PGDSN)
		}
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		store = ps
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	var listings cache.ListingCache
	if cfg.RedisAddr != "" {
		listings = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.ListingTTL)
	} else {
		listings = cache.NewMemory(cfg.ListingTTL)
	}

	wsReg := notify.NewWSRegistry()
	var fcm notify.Sender
	if cfg.FCMEndpoint != "" {
		fcm = notify.NewFCMSender(cfg.FCMEndpoint, cfg.FCMKey)
	}
	bridge := notify.NewBridge(notify.NewPushSender(wsReg, fcm), logger)

	engine := &lifecycle.Service{
		Store:  store,
		Bridge: bridge,
		Cache:  listings,
		Logger: logger,
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		engine.Events = kp
	}

	verifier := auth.NewJWTVerifier(cfg.JWTSecret, cfg.TokenDuration)
	authMW := &auth.Middleware{Verifier: verifier, Store: store, Logger: logger}

	srv := httpapi.NewServer(engine, store, authMW, wsReg, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("ride-share api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("ride-share api stopped")
}

// runMigrations applies migrations/001_init.sql when MIGRATE=true.
func runMigrations(dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("migration db open error: %v", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
	if err != nil {
		log.Printf("migration read error: %v", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		log.Printf("migration exec error: %v", err)
		return
	}
	log.Printf("migration applied: 001_init.sql")
}
