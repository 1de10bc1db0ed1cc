// Package main runs the FieldSync agent: a localhost companion service for
// the LINGAP barangay health portal. Visit records submitted while the
// device is offline are queued in a local SQLite database and replayed
// against the portal when connectivity returns.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/lingaphealth/fieldsync/cmd/fieldsync/handlers"
	"github.com/lingaphealth/fieldsync/internal/config"
	"github.com/lingaphealth/fieldsync/internal/connectivity"
	"github.com/lingaphealth/fieldsync/internal/db"
	"github.com/lingaphealth/fieldsync/internal/engine"
	apperrors "github.com/lingaphealth/fieldsync/internal/errors"
	"github.com/lingaphealth/fieldsync/internal/logging"
	"github.com/lingaphealth/fieldsync/internal/models"
	"github.com/lingaphealth/fieldsync/internal/queue"
	"github.com/lingaphealth/fieldsync/internal/session"
	"github.com/lingaphealth/fieldsync/internal/status"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(os.Stdout, cfg.LogLevel)

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		logging.Error("failed to open local database", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logging.Error("failed to migrate local database", err, nil)
		os.Exit(1)
	}

	store := queue.NewSQLiteStore(database)
	tracker := status.NewTracker(database, store)
	eng := engine.New(store, tracker, cfg.PortalURL, cfg.RequestTimeout)
	tokens := session.NewTokenStore()

	hub := NewWSHub()
	tracker.Subscribe(func(s models.SyncStatus) {
		hub.BroadcastStatus(s)
	})

	// Every offline-to-online transition attempts one sync pass. Without a
	// session token the pass is skipped so failed auth does not burn the
	// retry budget of queued records.
	monitor := connectivity.NewMonitor(
		connectivity.HTTPProbe(cfg.PortalURL+"/api/health"),
		cfg.ProbeInterval,
		func() {
			go func() {
				token := tokens.Get()
				if token == "" {
					logging.Warn("portal reachable but no session token, skipping sync", nil)
					return
				}
				result, err := eng.Sync(ctx, token)
				if err != nil {
					if !apperrors.Is(err, apperrors.ErrSyncInProgress) {
						logging.Error("connectivity-triggered sync failed", err, nil)
					}
					return
				}
				hub.BroadcastSyncCompleted(*result)
			}()
		},
	)
	monitor.Subscribe(func(online bool) {
		hub.BroadcastConnectivity(online)
	})
	monitor.Start(ctx)
	defer monitor.Stop()

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"fieldsync"}`))
	})
	router.Get("/ws", hub.ServeWS)

	h := handlers.New(store, tracker, eng, tokens, monitor)
	h.Routes(router)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logging.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logging.Info("fieldsync agent listening", logging.Fields{
		"addr":   cfg.ListenAddr,
		"portal": cfg.PortalURL,
	})
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logging.Error("server error", err, nil)
		os.Exit(1)
	}

	logging.Info("agent stopped", nil)
}
