package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/lamim/questionforge/internal/api"
	"github.com/lamim/questionforge/internal/checkpoint"
	"github.com/lamim/questionforge/internal/config"
	"github.com/lamim/questionforge/internal/metrics"
	"github.com/lamim/questionforge/internal/orchestrator"
	"github.com/lamim/questionforge/internal/poller"
	"github.com/lamim/questionforge/internal/writer"
	"github.com/lamim/questionforge/pkg/models"
)

// app holds everything a command needs to drive one session
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	sessionMgr *writer.SessionManager
	store      *checkpoint.Manager
	results    *writer.ResultsWriter
	collector  *metrics.Collector
	session    *orchestrator.Session

	logFile     *os.File
	stopMetrics context.CancelFunc
}

// loadEnvFile loads variables from path without overriding the environment
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadConfig reads the env file and configuration shared by every command
func loadConfig() (*config.Config, *config.Secrets, error) {
	if err := loadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, secrets, nil
}

// openApp wires a session. fresh creates a new session directory; otherwise
// the --session (or latest) session is opened and its saved state resumed.
func openApp(ctx context.Context, fresh bool) (*app, error) {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return nil, err
	}

	bootstrap := writer.NewConsoleLogger(logLevel())
	var sessionMgr *writer.SessionManager
	if fresh {
		sessionMgr, err = writer.NewSessionManager(cfg.Session.StateDir, bootstrap)
	} else {
		sessionMgr, err = writer.OpenSessionManager(cfg.Session.StateDir, sessionName, bootstrap)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	a := &app{cfg: cfg, sessionMgr: sessionMgr, logger: bootstrap}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	logger, logFile, err := writer.SetupLogger(sessionMgr, logLevel())
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	a.logger, a.logFile = logger, logFile

	if fresh {
		data, err := config.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		if err := sessionMgr.BackupConfig(data); err != nil {
			return nil, fmt.Errorf("failed to backup config: %w", err)
		}
	}

	var saved *models.SessionState
	if !fresh {
		saved, err = checkpoint.Load(sessionMgr.GetSessionDir(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", sessionMgr.Name(), err)
		}
		if err := checkpoint.ValidateState(saved, cfg); err != nil {
			return nil, fmt.Errorf("session validation failed: %w", err)
		}
	}

	a.collector = metrics.NewCollector(nil, a.logger)
	if metricsAddr != "" {
		mctx, cancel := context.WithCancel(ctx)
		a.stopMetrics = cancel
		go func() {
			if err := a.collector.Serve(mctx, metricsAddr); err != nil {
				a.logger.Error("Metrics server failed", "addr", metricsAddr, "error", err)
			}
		}()
	}

	a.store = checkpoint.NewManager(sessionMgr.GetSessionDir(), a.logger)
	a.results, err = writer.NewResultsWriter(sessionMgr, a.logger)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(api.Options{
		BaseURL:           cfg.Server.BaseURL,
		APIKey:            secrets.APIKey,
		HTTPTimeout:       cfg.Server.HTTPTimeout(),
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
		MaxRetries:        cfg.Server.MaxRetries,
		MaxBackoff:        cfg.Server.MaxBackoff(),
	}, a.logger)
	client.SetMetrics(a.collector)

	a.session = orchestrator.New(client, orchestrator.Options{
		MaxRegenerationAttempts: cfg.Session.MaxRegenerationAttempts,
		Poll: poller.Options{
			Interval:               cfg.Polling.Interval(),
			MaxConsecutiveFailures: cfg.Polling.MaxConsecutiveFailures,
			MaxBackoff:             cfg.Polling.MaxBackoff(),
		},
		Store:      a.store,
		Results:    a.results,
		Metrics:    a.collector,
		BaseURL:    cfg.Server.BaseURL,
		ConfigHash: cfg.Hash(),
	}, a.logger)

	a.logger.Debug("QuestionForge starting",
		"version", Version,
		"config", configPath,
		"session_dir", sessionMgr.GetSessionDir(),
		"base_url", cfg.Server.BaseURL)

	if saved != nil {
		if err := a.session.Resume(*saved); err != nil {
			return nil, fmt.Errorf("failed to resume session: %w", err)
		}
	} else if err := a.store.Save(a.session.State()); err != nil {
		// A fresh session is resumable even if the first submit is rejected
		return nil, fmt.Errorf("failed to save session state: %w", err)
	}

	ok = true
	return a, nil
}

// Close stops polling, flushes the session state and closes log and result files
func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("Failed to flush session state", "error", err)
		}
	}
	if a.results != nil {
		if err := a.results.Close(); err != nil {
			a.logger.Error("Failed to close results file", "error", err)
		}
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.logFile != nil {
		_ = a.logFile.Sync()
		_ = a.logFile.Close()
	}
}
