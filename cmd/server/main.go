package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/journal-monitor/backend/internal/api"
	"github.com/journal-monitor/backend/internal/config"
	"github.com/journal-monitor/backend/internal/logging"
	"github.com/journal-monitor/backend/internal/session"
	"github.com/journal-monitor/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const defaultConfigName = "journal-monitor.config"

// configPath returns JOURNAL_MONITOR_CONFIG or the config file next to the executable.
func configPath() (string, error) {
	if p := os.Getenv("JOURNAL_MONITOR_CONFIG"); p != "" {
		return p, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), defaultConfigName), nil
}

func main() {
	// A missing .env is not an error.
	_ = godotenv.Load()

	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
}

func run() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Advanced.LogLevel
	logCfg.Format = cfg.Advanced.LogFormat
	logging.Configure(logCfg)
	log := logging.Component("server")

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	archive, err := storage.NewArchive(cfg.Storage.ArchiveDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize archive: %w", err)
	}

	opts := session.DefaultOptions()
	opts.TempDir = cfg.Storage.TempDirectory
	opts.MaxSessions = cfg.Monitor.MaxSessions
	opts.Thresholds = cfg.Thresholds()
	opts.Associated = cfg.AssociatedFileOptions()
	opts.Merge = cfg.MergeConfig()
	if cfg.Storage.EnablePersistence {
		journals, err := session.NewJournalStore(cfg.Storage.JournalDirectory)
		if err != nil {
			return fmt.Errorf("failed to open journal store: %w", err)
		}
		opts.Journals = journals
	}

	sessionMgr := session.NewManager(opts)
	defer sessionMgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := session.NewScheduler(sessionMgr, cfg.PollInterval(), cfg.CleanupInterval(), cfg.SessionTimeout())
	schedDone := make(chan error, 1)
	go func() {
		schedDone <- scheduler.Run(ctx)
	}()

	api.Development = cfg.Advanced.LogLevel == "debug"

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		RequestTimeout: time.Duration(cfg.Advanced.RequestTimeout) * time.Second,
		BodyLimit:      cfg.Server.BodyLimit,
		AllowOrigins:   cfg.AllowedOrigins(),
	})

	handlers := api.NewHandlers(&api.Dependencies{
		SessionMgr: sessionMgr,
		Decoder:    sessionMgr.Decoder(),
		Archive:    archive,
		Version:    Version,
	})
	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info().
		Str("version", Version).
		Str("buildTime", BuildTime).
		Str("config", path).
		Str("listen", "http://"+cfg.GetServerAddr()).
		Str("dataDir", cfg.Storage.DataDirectory).
		Int("eventTypes", sessionMgr.Decoder().Registry().Len()).
		Msg("Journal monitor starting")

	serveErr := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Server shutdown")
	}
	if err := <-schedDone; err != nil {
		log.Warn().Err(err).Msg("Scheduler stopped with error")
	}
	return nil
}
