package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-share/internal/config"
	"github.com/example/ride-share/internal/logging"
	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/storage"
	"github.com/example/ride-share/internal/sweep"
)

// The sweeper is a standalone process so sweep load and API load scale
// independently; both talk to the same store.
func main() {
	var runOnce string
	flag.StringVar(&runOnce, "run-once", "", "run a single sweep and exit: 'reminder' or 'expiry'")
	flag.Parse()

	cfg, err := config.LoadSweeperConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, "sweeper")

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		store = ps
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	var fcm notify.Sender
	if cfg.FCMEndpoint != "" {
		fcm = notify.NewFCMSender(cfg.FCMEndpoint, cfg.FCMKey)
	} else {
		logger.Warn("FCM_ENDPOINT not set, reminders will be dropped")
	}
	bridge := notify.NewBridge(notify.NewPushSender(nil, fcm), logger)

	svc := &sweep.Service{
		Store:       store,
		Bridge:      bridge,
		Logger:      logger,
		WindowStart: cfg.ReminderWindowStart,
		WindowEnd:   cfg.ReminderWindowEnd,
		Dedupe:      cfg.ReminderDedupe,
	}

	switch runOnce {
	case "reminder":
		if err := svc.RunReminderTick(context.Background()); err != nil {
			log.Fatal(err)
		}
		return
	case "expiry":
		if _, err := svc.RunExpiryTick(context.Background()); err != nil {
			log.Fatal(err)
		}
		return
	}

	// metrics and health sidecar
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	sched, err := sweep.NewScheduler(svc, logger, cfg.ReminderSchedule, cfg.ExpirySchedule)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	sched.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sched.Stop()
}
