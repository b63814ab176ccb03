package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"menagent/internal/activity"
	"menagent/internal/api"
	"menagent/internal/auth"
	"menagent/internal/capture"
	"menagent/internal/config"
	"menagent/internal/recording"
	"menagent/internal/scheduler"
	"menagent/internal/server"
	"menagent/internal/singleton"
	"menagent/internal/streaming"
	"menagent/internal/tray"
	"menagent/pkg/logger"
)

const (
	appName    = "MenAgent"
	appVersion = "1.4.0"
)

// getAppDataDir resolves the per-user data directory.
// Windows: %LOCALAPPDATA%\MenAgent; elsewhere the OS config dir, falling
// back to the working directory.
func getAppDataDir() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, appName)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, appName)
	}
	workDir, err := os.Getwd()
	if err != nil {
		log.Fatalf("cannot resolve working directory: %v", err)
	}
	return workDir
}

func main() {
	// Refuse to run twice; a second agent would double-report telemetry.
	lock, err := singleton.EnsureSingleInstance(appName)
	if err != nil {
		os.Exit(1)
	}
	defer lock.Close()

	appDataDir := getAppDataDir()
	if err := os.MkdirAll(appDataDir, 0755); err != nil {
		log.Fatalf("failed to create data directory %s: %v", appDataDir, err)
	}

	cfg, err := config.Load(appDataDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(filepath.Join(appDataDir, "logs"), cfg.Debug); err != nil {
		log.Printf("logger init failed: %v, falling back to console", err)
	}
	defer logger.Close()
	logger.Info("==================== %s %s starting ====================", appName, appVersion)

	store, err := auth.NewStore(appDataDir)
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}
	if err := store.SetServerURL(cfg.ServerURL); err != nil {
		log.Fatalf("failed to store server URL: %v", err)
	}

	// Wired below once the scheduler and streamer exist; the client only
	// calls it after a 401, never during construction.
	var (
		sched    *scheduler.Scheduler
		streamer *streaming.Manager
	)
	client := api.NewClient(store, func() {
		logger.Warn("session expired, stopping all monitoring until next login")
		if sched != nil {
			sched.Stop()
		}
		if streamer != nil {
			streamer.StopCurrent()
		}
		if err := store.SetConnected(false); err != nil {
			logger.Warn("failed to persist connect flag: %v", err)
		}
	})

	counters := activity.NewCounters()
	windows := capture.NewWindowWatcher()
	tracker := activity.NewTracker(windows, client)
	reporter := activity.NewReporter(counters, client)
	shooter := capture.NewShooter(client, windows)

	// Recording and streaming each own an independent screen source; both
	// running at once is legitimate (a stream during a recording cycle).
	recorder := recording.NewRecorder(capture.NewScreenSource(), client)
	streamer = streaming.NewManager(
		client,
		streaming.NewScreenMedia(capture.NewScreenSource()),
		func(requestID, status string) {
			logger.Info("stream %s status: %s", requestID, status)
		},
	)

	sched = scheduler.New(scheduler.Deps{
		Transport: client,
		Shooter:   shooter,
		Windows:   tracker,
		Activity:  reporter,
		Idle:      counters,
		Recorder:  recorder,
		Streamer:  streamer,
		Settings:  store,
	})

	statusSrv := server.NewServer(cfg.StatusAddr, sched, store, recorder, streamer, appVersion)
	go func() {
		if err := statusSrv.Start(); err != nil {
			logger.Error("status server error: %v", err)
		}
	}()

	// With a stored token, re-establish the session immediately; without
	// one the agent idles until a login stores credentials (login UI is an
	// external collaborator).
	if store.Token() != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sched.Reconnect(ctx); err != nil {
				logger.Error("reconnect failed: %v", err)
				return
			}
			if err := store.SetConnected(true); err != nil {
				logger.Warn("failed to persist connect flag: %v", err)
			}
		}()
	} else {
		logger.Warn("no session token stored, waiting for login")
	}

	trayApp := tray.NewApp(sched, streamer, client, store, func() {
		statusSrv.Shutdown()
		if err := store.Close(); err != nil {
			logger.Warn("failed to close state store: %v", err)
		}
	})

	// Blocks until quit.
	trayApp.Run()
}
