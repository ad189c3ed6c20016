package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"tradepost/internal/moderation"
	"tradepost/pkg/config"
	"tradepost/pkg/httpx"
	"tradepost/pkg/logger"
	"tradepost/pkg/store"
	"tradepost/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg       *config.Config
	addr      string
	dbPath    string
	source    string
	version   string
	commit    string
	buildDate string

	srv        *httpx.Server
	stopPurger context.CancelFunc
}

// New initializes resources that do not require a running context (store,
// validation rules, runtime keys). It does not start the HTTP server or the
// moderation scheduler; call Run to start those and block until shutdown.
func New(cfg *config.Config, addr, dbPath, source, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(cfg, dbPath); err != nil {
		return nil, err
	}

	// runtime keys; identity verification falls back to backend keys as
	// signing secrets when no dedicated signing keys are configured
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range cfg.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.SigningKeys {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	initValidation(cfg)

	if err := store.Open(dbPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dbPath, err)
	}

	return &App{
		cfg:       cfg,
		addr:      addr,
		dbPath:    dbPath,
		source:    source,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
	}, nil
}

// Run starts the moderation scheduler and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stop, err := moderation.Start(ctx, a.cfg.Moderation)
	if err != nil {
		return err
	}
	a.stopPurger = stop

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

// shutdown stops background work and closes the store, giving in-flight
// requests a grace window.
func (a *App) shutdown() {
	if a.stopPurger != nil {
		a.stopPurger()
	}
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Error("http_shutdown_error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_error", "error", err)
	}
	logger.Info("shutdown_complete")
	logger.Sync()
}

// initValidation builds validation rules from config and sets them globally.
func initValidation(cfg *config.Config) {
	vr := validation.Rules{
		MaxContentBytes: int(cfg.Limits.MaxContentBytes),
		MaxNameLen:      cfg.Limits.MaxNameLen,
	}
	validation.SetRules(vr)
}
