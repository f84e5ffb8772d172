package main

import (
	"context"   // Cancellable sync runs
	"os"        // Signal handling
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Periodic sync ticker

	"capital_flux/internal/config"       // Custom package for configuration
	"capital_flux/internal/connectivity" // Server reachability monitor
	"capital_flux/internal/remote"       // HTTP client for the sync server
	"capital_flux/internal/store"        // Local sqlite store
	"capital_flux/internal/sync"         // Reconciliation engine

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for the sync daemon: it keeps the local sqlite store
// reconciled with the remote server on an interval and on reconnect.
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Open the local store
	st, err := store.Open(cfg.LocalDBPath)
	if err != nil {
		logrus.Fatalf("failed to open local store: %v", err)
	}
	defer st.Close()

	// Authenticate against the sync server
	client := remote.NewClient(cfg.APIBaseURL)
	if err := client.Login(context.Background(), cfg.SyncUsername, cfg.SyncPassword); err != nil {
		logrus.Fatalf("login failed: %v", err)
	}
	defer client.Logout()

	// Watch server reachability; the engine subscribes for reconnect syncs
	monitor := connectivity.NewMonitor(cfg.APIBaseURL+"/health", 30*time.Second)
	monitor.Start()
	defer monitor.Stop()

	// Build the engine
	engineCfg := sync.DefaultConfig()
	engineCfg.SyncOnReconnect = cfg.SyncOnReconnect
	engineCfg.PullStrategy = pullStrategy(cfg.ConflictStrategy)
	engine := sync.NewEngine(engineCfg, st, client, monitor, client)
	engine.SetHandlers(sync.Handlers{
		OnSyncStart: func() {
			logrus.Info("Sync started")
		},
		OnSyncComplete: func(stats sync.Stats) {
			logrus.WithFields(logrus.Fields{
				"synced":    stats.Synced,
				"failed":    stats.Failed,
				"conflicts": stats.Conflicts,
			}).Info("Sync finished")
		},
		OnSyncError: func(err error) {
			logrus.WithField("error", err.Error()).Error("Sync failed")
		},
		OnConflict: func(res sync.Resolution) {
			logrus.WithFields(logrus.Fields{
				"strategy": string(res.Strategy),
				"details":  res.Details,
			}).Warn("Conflict resolved")
		},
	})
	engine.Initialize()
	defer engine.Destroy()

	// Initial pass, then periodic runs until interrupted
	engine.Sync(context.Background())

	ticker := time.NewTicker(time.Duration(cfg.SyncIntervalSecs) * time.Second)
	defer ticker.Stop()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	logrus.WithField("interval_secs", cfg.SyncIntervalSecs).Info("Sync daemon running")
	for {
		select {
		case <-ticker.C:
			engine.Sync(context.Background())
		case sig := <-sigs:
			logrus.WithField("signal", sig.String()).Info("Shutting down")
			return
		}
	}
}

// pullStrategy maps the configured strategy name onto the engine's type,
// falling back to server wins for unknown values
func pullStrategy(name string) sync.Strategy {
	switch name {
	case "client_wins":
		return sync.StrategyClientWins
	case "merge":
		return sync.StrategyMerge
	default:
		return sync.StrategyServerWins
	}
}
